// MIT License

// Copyright (c) 2018 Akhil Indurti

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:

// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package site serves the public reading surface: the home feed, search,
// post pages with live reaction tallies, and uploaded media.
package site

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"slayer.id/slayer/internal/blob"
	"slayer.id/slayer/internal/logging"
	"slayer.id/slayer/internal/reaction"
	"slayer.id/slayer/internal/store"
)

// Posts is the read side of the record store plus the tally counter.
type Posts interface {
	Get(ctx context.Context, id string) (store.Post, error)
	List(ctx context.Context, c store.Category) ([]store.Post, error)
	Search(ctx context.Context, q string) ([]store.Post, error)
	reaction.Counter
}

// Media opens uploaded objects by key.
type Media interface {
	Open(key string) (*os.File, error)
}

type Deps struct {
	Posts  Posts
	Media  Media  // optional; /media is not served without it
	Origin string // scheme and host used for permalinks
	Log    *slog.Logger
}

// Server is an http.Handler. Close it to disconnect websocket subscribers.
type Server struct {
	posts    Posts
	media    Media
	origin   string
	log      *slog.Logger
	hub      *hub
	inflight reaction.Inflight
	upgrader websocket.Upgrader
	handler  http.Handler
}

func New(d Deps) *Server {
	log := logging.OrDiscard(d.Log)
	s := &Server{
		posts:  d.Posts,
		media:  d.Media,
		origin: strings.TrimSuffix(d.Origin, "/"),
		log:    log,
		hub:    newHub(log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleFeed)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /{category}/{id}", s.handlePost)
	mux.HandleFunc("POST /api/posts/{id}/reactions", s.handleReact)
	mux.HandleFunc("GET /ws/posts/{id}", s.handleSubscribe)
	if s.media != nil {
		mux.HandleFunc("GET /media/{key}", s.handleMedia)
	}
	s.handler = logging.Middleware(log, mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Close() {
	s.hub.close()
}

// permalink is the absolute address of a post.
func (s *Server) permalink(p store.Post) string {
	return s.origin + path(p)
}

func path(p store.Post) string {
	return "/" + url.PathEscape(string(p.Category)) + "/" + url.PathEscape(p.ID)
}

// checkOrigin accepts same-host websocket requests and those from the
// configured origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || strings.EqualFold(origin, s.origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func status(err error) int {
	switch {
	case store.IsKind(err, store.KindNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case store.IsKind(err, store.KindInvalid), errors.Is(err, blob.ErrInvalidKey),
		errors.Is(err, reaction.ErrUnknownReaction):
		return http.StatusBadRequest
	case errors.Is(err, reaction.ErrBusy):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	tab := store.Category(r.URL.Query().Get("tab"))
	if tab == "" {
		tab = store.All
	}
	posts, err := s.posts.List(r.Context(), tab)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "feed.html", feedPage{
		Meta:  Meta{Title: siteTitle},
		Tabs:  tabsFor(tab),
		Cards: cards(posts),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	posts, err := s.posts.Search(r.Context(), q)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "search.html", searchPage{
		Meta:  Meta{Title: "Search: " + q + " | " + siteTitle},
		Query: q,
		Count: len(posts),
		Cards: cards(posts),
	})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if !store.Category(r.PathValue("category")).Valid() {
		s.pageError(w, r, &store.OpError{Op: "get", Kind: store.KindNotFound, Err: store.ErrNotFound})
		return
	}
	p, err := s.posts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	page, err := s.postPage(p, cookiePrefs{w, r})
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "post.html", page)
}

type voteRequest struct {
	Type store.Reaction `json:"type"`
}

type voteResponse struct {
	PostID  string         `json:"post_id"`
	Counts  store.Counts   `json:"counts"`
	Choice  store.Reaction `json:"choice"`
	Changed bool           `json:"changed"`
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req voteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.apiError(w, r, http.StatusBadRequest, errors.New("malformed vote"))
		return
	}
	v := &reaction.Voter{
		Prefs:    cookiePrefs{w, r},
		Counter:  s.posts,
		Visitor:  visitor(w, r),
		Inflight: &s.inflight,
	}
	counts, changed, err := v.Vote(r.Context(), id, req.Type)
	if err != nil {
		s.apiError(w, r, status(err), err)
		return
	}
	if changed {
		s.hub.publish(countsUpdate{PostID: id, Counts: counts})
		logging.FromContext(r.Context(), s.log).Info("vote recorded", "post_id", id, "reaction", req.Type)
	}
	writeJSON(w, http.StatusOK, voteResponse{PostID: id, Counts: counts, Choice: req.Type, Changed: changed})
}

// handleSubscribe streams countsUpdate messages for one post, starting with
// the current tallies.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.apiError(w, r, status(err), err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		logging.FromContext(r.Context(), s.log).Debug("websocket upgrade failed", "error", err)
		return
	}
	first, err := json.Marshal(countsUpdate{PostID: p.ID, Counts: p.Reactions})
	if err != nil {
		conn.Close()
		return
	}
	sub := &subscriber{hub: s.hub, conn: conn, postID: p.ID, send: make(chan []byte, sendQueue)}
	sub.send <- first
	if !s.hub.join(sub) {
		conn.Close()
	}
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	f, err := s.media.Open(key)
	if err != nil {
		http.Error(w, http.StatusText(status(err)), status(err))
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, key, fi.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code == http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.log).Error("request failed", "error", err)
		err = errors.New(http.StatusText(code))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

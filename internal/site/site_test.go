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

package site

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	nethtml "golang.org/x/net/html"

	"slayer.id/slayer/internal/blob"
	"slayer.id/slayer/internal/store"
)

const wrapContent = "*Market Recap*\n_Stay safe_\n- Bitcoin **holds** 70k\n\nSource https://www.coindesk.com/markets"

type fixture struct {
	srv   *Server
	store *store.Store
	media *blob.FS
	wrap  store.Post
	etf   store.Post
	alt   store.Post
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	var (
		mu    sync.Mutex
		ticks int
	)
	s, err := store.Open(filepath.Join(dir, "slayer.db"), store.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		return time.Date(2025, 6, 1, 8, ticks, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	fs, err := blob.NewFS(filepath.Join(dir, "media"), "/media")
	require.NoError(t, err)

	f := &fixture{store: s, media: fs}
	ctx := context.Background()
	f.wrap, err = s.Insert(ctx, store.Post{Title: "Weekly wrap", Content: wrapContent, Category: store.News})
	require.NoError(t, err)
	f.etf, err = s.Insert(ctx, store.Post{Title: "BTC ETF inflows", Content: "Bitcoin ETF flows _surge_", Category: store.BTC})
	require.NoError(t, err)
	f.alt, err = s.Insert(ctx, store.Post{Title: "Alt season?", Category: store.Alt, ImageURL: "/media/1-alt.png"})
	require.NoError(t, err)

	f.srv = New(Deps{Posts: s, Media: fs, Origin: "https://slayer.id/"})
	t.Cleanup(f.srv.Close)
	return f
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, *nethtml.Node) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	res := rec.Result()
	doc, err := nethtml.Parse(res.Body)
	require.NoError(t, err)
	return res, doc
}

func textOf(n *nethtml.Node) string {
	if n.Type == nethtml.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

func texts(doc *nethtml.Node, sel string) []string {
	var out []string
	for _, n := range cascadia.MustCompile(sel).MatchAll(doc) {
		out = append(out, strings.TrimSpace(textOf(n)))
	}
	return out
}

func attr(doc *nethtml.Node, sel, key string) string {
	n := cascadia.MustCompile(sel).MatchFirst(doc)
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestFeed(t *testing.T) {
	f := setup(t)

	res, doc := get(t, f.srv, "/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
	assert.Equal(t, []string{"Alt season?", "BTC ETF inflows", "Weekly wrap"}, texts(doc, "article.card h2 a"))
	assert.Equal(t, []string{"All"}, texts(doc, "nav.tabs a.active"))
	assert.Equal(t, "/btc/"+f.etf.ID, attr(doc, "article.card:nth-of-type(2) h2 a", "href"))
	assert.Equal(t, "/media/1-alt.png", attr(doc, "article.card img", "src"))

	res, doc = get(t, f.srv, "/?tab=btc")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"BTC ETF inflows"}, texts(doc, "article.card h2 a"))
	assert.Equal(t, []string{"Bitcoin"}, texts(doc, "nav.tabs a.active"))

	res, _ = get(t, f.srv, "/?tab=memes")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestFeedEmpty(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.store.Delete(context.Background(), f.etf.ID))
	_, doc := get(t, f.srv, "/?tab=btc")
	assert.Empty(t, texts(doc, "article.card"))
	assert.Len(t, texts(doc, "p.empty"), 1)
}

func TestSearch(t *testing.T) {
	f := setup(t)

	res, doc := get(t, f.srv, "/search?q=bitcoin")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"BTC ETF inflows", "Weekly wrap"}, texts(doc, "article.card h2 a"))
	assert.Equal(t, []string{"2 matching results."}, texts(doc, "p.count"))
	assert.Equal(t, []string{`Search results: "bitcoin"`}, texts(doc, "main h1"))

	_, doc = get(t, f.srv, "/search?q=doge")
	assert.Equal(t, []string{"0 matching results."}, texts(doc, "p.count"))
	assert.Len(t, texts(doc, "p.empty"), 1)
}

func TestPostPage(t *testing.T) {
	f := setup(t)

	res, doc := get(t, f.srv, "/news/"+f.wrap.ID)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"Weekly wrap"}, texts(doc, "article.post h1"))
	assert.Equal(t, []string{"news"}, texts(doc, "article.post .meta .category"))
	assert.Equal(t, []string{"1 June 2025"}, texts(doc, "article.post .meta time"))
	assert.Empty(t, texts(doc, ".updated"))

	assert.Equal(t, []string{"Market Recap"}, texts(doc, ".body h3"))
	assert.Equal(t, []string{"Stay safe"}, texts(doc, ".body blockquote p"))
	assert.Equal(t, []string{"holds"}, texts(doc, ".body .list-item.bullet strong"))
	assert.Equal(t, []string{"coindesk.com"}, texts(doc, `.body a[href="https://www.coindesk.com/markets"]`))
	assert.Len(t, texts(doc, ".body .spacer"), 1)

	assert.Equal(t, "Weekly wrap", textOf(cascadia.MustCompile("title").MatchFirst(doc)))
	assert.Equal(t,
		"*Market Recap* _Stay safe_ - Bitcoin **holds** 70k  Source https://www.coindesk.com/markets...",
		attr(doc, `meta[name="description"]`, "content"))
	assert.Equal(t, "https://slayer.id/news/"+f.wrap.ID, attr(doc, `meta[property="og:url"]`, "content"))
	assert.Equal(t, "article", attr(doc, `meta[property="og:type"]`, "content"))
	assert.Equal(t, "summary_large_image", attr(doc, `meta[name="twitter:card"]`, "content"))

	assert.Equal(t, []string{"0", "0", "0"}, texts(doc, ".reaction .count"))
	assert.Equal(t, "Weekly wrap\nhttps://slayer.id/news/"+f.wrap.ID, attr(doc, ".share .copy", "data-text"))
	assert.Equal(t,
		"https://twitter.com/intent/tweet?text=Weekly%20wrap&url=https%3A%2F%2Fslayer.id%2Fnews%2F"+f.wrap.ID,
		attr(doc, ".share a.twitter", "href"))
}

func TestPostPageImageAndFallbacks(t *testing.T) {
	f := setup(t)
	_, doc := get(t, f.srv, "/alt/"+f.alt.ID)
	assert.Equal(t, "/media/1-alt.png", attr(doc, "img.cover", "src"))
	assert.Equal(t, "https://slayer.id/media/1-alt.png", attr(doc, `meta[property="og:image"]`, "content"))
	assert.Equal(t, "Market Intelligence Update", attr(doc, `meta[name="description"]`, "content"))
	assert.Empty(t, texts(doc, ".body *"))
}

func TestPostPageUpdated(t *testing.T) {
	f := setup(t)
	p := f.etf
	p.Content = "Revised"
	_, err := f.store.Update(context.Background(), p)
	require.NoError(t, err)

	_, doc := get(t, f.srv, "/btc/"+p.ID)
	assert.Equal(t, []string{"Updated"}, texts(doc, ".updated"))
}

func TestPostNotFound(t *testing.T) {
	f := setup(t)

	res, doc := get(t, f.srv, "/news/missing")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "Post Not Found", textOf(cascadia.MustCompile("title").MatchFirst(doc)))

	res, _ = get(t, f.srv, "/memes/"+f.wrap.ID)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

type voter struct {
	t    *testing.T
	base string
	c    *http.Client
}

func newVoter(t *testing.T, base string) *voter {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &voter{t: t, base: base, c: &http.Client{Jar: jar}}
}

func (v *voter) vote(id, body string) (int, voteResponse) {
	v.t.Helper()
	res, err := v.c.Post(v.base+"/api/posts/"+id+"/reactions", "application/json", strings.NewReader(body))
	require.NoError(v.t, err)
	defer res.Body.Close()
	var out voteResponse
	if res.StatusCode == http.StatusOK {
		require.NoError(v.t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func TestVote(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()
	id := f.wrap.ID

	alice := newVoter(t, ts.URL)
	code, got := alice.vote(id, `{"type":"bullish"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, voteResponse{PostID: id, Counts: store.Counts{Bullish: 1}, Choice: store.Bullish, Changed: true}, got)

	code, got = alice.vote(id, `{"type":"bullish"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, got.Changed)
	assert.Equal(t, store.Counts{Bullish: 1}, got.Counts)

	_, got = alice.vote(id, `{"type":"bearish"}`)
	assert.True(t, got.Changed)
	assert.Equal(t, store.Counts{Bearish: 1}, got.Counts)

	bob := newVoter(t, ts.URL)
	_, got = bob.vote(id, `{"type":"rocket"}`)
	assert.Equal(t, store.Counts{Bearish: 1, Rocket: 1}, got.Counts)

	res, err := alice.c.Get(ts.URL + "/news/" + id)
	require.NoError(t, err)
	doc, err := nethtml.Parse(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "bearish", attr(doc, ".reaction.active", "data-type"))
	assert.Equal(t, []string{"0", "1", "1"}, texts(doc, ".reaction .count"))

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Bearish: 1, Rocket: 1}, stored.Reactions)
}

func TestVoteRejects(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()
	v := newVoter(t, ts.URL)

	code, _ := v.vote(f.wrap.ID, `{"type":"moon"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = v.vote(f.wrap.ID, `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = v.vote("missing", `{"type":"rocket"}`)
	assert.Equal(t, http.StatusNotFound, code)

	res, err := v.c.Get(ts.URL + "/api/posts/" + f.wrap.ID + "/reactions")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func wsURL(ts *httptest.Server, id string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/posts/" + id
}

func TestSubscribe(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()
	id := f.etf.ID

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, id), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg countsUpdate
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, countsUpdate{PostID: id}, msg)

	newVoter(t, ts.URL).vote(id, `{"type":"rocket"}`)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, countsUpdate{PostID: id, Counts: store.Counts{Rocket: 1}}, msg)

	// votes on other posts are not delivered
	newVoter(t, ts.URL).vote(f.wrap.ID, `{"type":"bullish"}`)
	newVoter(t, ts.URL).vote(id, `{"type":"bearish"}`)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, countsUpdate{PostID: id, Counts: store.Counts{Rocket: 1, Bearish: 1}}, msg)
}

func TestSubscribeRejects(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	_, res, err := websocket.DefaultDialer.Dial(wsURL(ts, "missing"), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	h := http.Header{"Origin": []string{"https://evil.example"}}
	_, res, err = websocket.DefaultDialer.Dial(wsURL(ts, f.etf.ID), h)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	h = http.Header{"Origin": []string{"https://slayer.id"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, f.etf.ID), h)
	require.NoError(t, err)
	conn.Close()
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, f.alt.ID), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg countsUpdate
	require.NoError(t, conn.ReadJSON(&msg))

	f.srv.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)
}

func TestMedia(t *testing.T) {
	f := setup(t)
	_, err := f.media.Upload(context.Background(), "1-alt.png", strings.NewReader("png bytes"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/1-alt.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/.upload-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListenAndServe(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- f.srv.ListenAndServe(ctx, "127.0.0.1:0", func(a net.Addr) { addrs <- a })
	}()

	addr := <-addrs
	res, err := http.Get("http://" + addr.String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "Weekly wrap")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

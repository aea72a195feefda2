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
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"slayer.id/slayer/ast"
	"slayer.id/slayer/gen/html"
	"slayer.id/slayer/internal/logging"
	"slayer.id/slayer/internal/reaction"
	"slayer.id/slayer/internal/share"
	"slayer.id/slayer/internal/store"
	"slayer.id/slayer/parser"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2 January 2006") },
}).ParseFS(templateFS, "templates/*.html"))

const siteTitle = "SLAYER Market Intelligence"

type tab struct {
	Name   store.Category
	Label  string
	Active bool
}

var tabLabels = []struct {
	name  store.Category
	label string
}{
	{store.All, "All"},
	{store.News, "News"},
	{store.BTC, "Bitcoin"},
	{store.Alt, "Altcoins"},
}

func tabsFor(active store.Category) []tab {
	tabs := make([]tab, len(tabLabels))
	for i, t := range tabLabels {
		tabs[i] = tab{Name: t.name, Label: t.label, Active: t.name == active}
	}
	return tabs
}

type card struct {
	store.Post
	Href string
}

func cards(posts []store.Post) []card {
	out := make([]card, len(posts))
	for i, p := range posts {
		out[i] = card{Post: p, Href: path(p)}
	}
	return out
}

type feedPage struct {
	Meta  Meta
	Tabs  []tab
	Cards []card
}

type searchPage struct {
	Meta  Meta
	Query string
	Count int
	Cards []card
}

type reactionButton struct {
	Type   store.Reaction
	Label  string
	Count  int
	Active bool
}

type postPage struct {
	Meta      Meta
	Post      store.Post
	Body      template.HTML
	Reactions []reactionButton
	Share     share.Links
}

type errorPage struct {
	Meta    Meta
	Status  int
	Message string
}

// body renders post content through the block formatter.
func body(content string) (template.HTML, error) {
	out, err := html.Gen(&ast.Document{Blocks: parser.Format(content)}).Output()
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

func (s *Server) postPage(p store.Post, prefs reaction.Prefs) (postPage, error) {
	b, err := body(p.Content)
	if err != nil {
		return postPage{}, err
	}
	choice, _ := prefs.Get(reaction.Key(p.ID))
	buttons := []reactionButton{
		{Type: store.Bullish, Label: "Bullish"},
		{Type: store.Rocket, Label: "To The Moon"},
		{Type: store.Bearish, Label: "Bearish"},
	}
	for i := range buttons {
		buttons[i].Count = p.Reactions.Of(buttons[i].Type)
		buttons[i].Active = string(buttons[i].Type) == choice
	}
	meta := Describe(&p, s.permalink(p))
	if strings.HasPrefix(meta.Image, "/") {
		meta.Image = s.origin + meta.Image
	}
	return postPage{
		Meta:      meta,
		Post:      p,
		Body:      b,
		Reactions: buttons,
		Share:     share.For(s.origin, string(p.Category), p.ID, p.Title),
	}, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.FromContext(r.Context(), s.log).Error("failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w)
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	page := errorPage{Status: code, Message: http.StatusText(code)}
	switch code {
	case http.StatusNotFound:
		page.Meta = Describe(nil, "")
	case http.StatusInternalServerError:
		logging.FromContext(r.Context(), s.log).Error("request failed", "error", err)
		page.Meta = Meta{Title: page.Message}
	default:
		page.Message = err.Error()
		page.Meta = Meta{Title: http.StatusText(code)}
	}
	s.render(w, r, code, "error.html", page)
}

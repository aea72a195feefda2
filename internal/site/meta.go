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
	"strings"
	"unicode/utf8"

	"slayer.id/slayer/internal/store"
)

const (
	descriptionLen      = 160
	fallbackDescription = "Market Intelligence Update"
	missingTitle        = "Post Not Found"
)

// Meta is the page metadata shared with search engines and link previews.
type Meta struct {
	Title       string
	Description string
	Image       string // empty when the post has no image
	URL         string
	Type        string // OpenGraph type
	Card        string // Twitter card type
}

// Describe returns the metadata for p, which is nil when the post does not
// exist. url is the post's canonical address.
func Describe(p *store.Post, url string) Meta {
	if p == nil {
		return Meta{Title: missingTitle}
	}
	m := Meta{
		Title:       p.Title,
		Description: fallbackDescription,
		Image:       p.ImageURL,
		URL:         url,
		Type:        "article",
		Card:        "summary_large_image",
	}
	if p.Content != "" {
		m.Description = strings.ReplaceAll(truncate(p.Content, descriptionLen), "\n", " ") + "..."
	}
	return m
}

// truncate returns the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

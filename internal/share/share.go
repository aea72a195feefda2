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

// Package share builds the copy-and-share links shown under a post.
package share

import (
	"net/url"
	"strings"
)

// Links holds the permalink of a post and the share targets built from it.
type Links struct {
	URL      string
	CopyText string // title, a newline, then URL
	Twitter  string
	Telegram string
	WhatsApp string
}

// For builds the links for the post id filed under category. origin is the
// scheme and host the site is served from.
func For(origin, category, id, title string) Links {
	u := strings.TrimSuffix(origin, "/") + "/" + url.PathEscape(category) + "/" + url.PathEscape(id)
	withLink := title + "\n" + u
	return Links{
		URL:      u,
		CopyText: withLink,
		Twitter:  "https://twitter.com/intent/tweet?text=" + component(title) + "&url=" + component(u),
		Telegram: "https://t.me/share/url?url=" + component(u) + "&text=" + component(title),
		WhatsApp: "https://wa.me/?text=" + component(withLink),
	}
}

// unreserved undoes the escapes QueryEscape applies but a browser's
// encodeURIComponent does not.
var unreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// component escapes s for use as a query value, the way a browser's
// encodeURIComponent does.
func component(s string) string {
	return unreserved.Replace(url.QueryEscape(s))
}

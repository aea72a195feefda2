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

// Package parser turns the raw text of a post into a sequence of ast.Block
// values. It takes in an io.Reader or a string and never fails on content:
// every input produces a block list, and the only error Parse reports is one
// from reading its source.
//
// Each source line becomes exactly one block. A line is classified by the
// first rule below that matches its trimmed form:
//
//      blank       = /* the trimmed line is empty */ .
//      heading     = asterisk { unicode_char } asterisk .     /* fewer than 100 UTF-16 units */
//      quote       = underscore { unicode_char } underscore . /* fewer than 300 UTF-16 units */
//      bullet      = hyphen space text .
//      numbered    = digit { digit } dot whitespace { whitespace } text .
//      paragraph   = text .
//
// Headings and quotes carry their text verbatim. Bullets, numbered items and
// paragraphs are split into inline spans, searching left to right for the
// first of
//
//      bold   = asterisk { not_asterisk } asterisk |
//               asterisk asterisk { not_asterisk } asterisk asterisk .
//      italic = underscore { not_underscore } underscore .
//      link   = "http" [ "s" ] "://" not_space { not_space } .
//
// Text between matches is kept as plain text. A link whose URL cannot be
// parsed is kept as plain text holding exactly what was written.
//
// Whitespace is any character a browser's \s matches, Unicode spaces
// included. Paragraph and bullet content keeps the whitespace of the
// original line; only the classification tests look at the trimmed line.
package parser // import "slayer.id/slayer/parser"

import (
	"io"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/net/idna"

	"slayer.id/slayer/ast"
)

const (
	maxHeading = 100
	maxQuote   = 300
)

// whitespace is every character a browser's \s matches. RE2's \s is
// ASCII only.
const whitespace = `\t\n\v\f\r\p{Zs}\x{2028}\x{2029}\x{FEFF}`

var (
	numbered = regexp.MustCompile(`^\d+\.[` + whitespace + `]`)
	ordinal  = regexp.MustCompile(`^(\d+\.)[` + whitespace + `]+([^\r\n\x{2028}\x{2029}]*)`)
	inline   = regexp.MustCompile(`\*[^*]+\*|\*\*[^*]+\*\*|_[^_]+_|https?://[^` + whitespace + `]+`)

	// Hostnames are shown the way a browser reports them: lower case,
	// punycode for international names. Underscores and hyphens anywhere
	// in a label are allowed.
	hosts = idna.New(idna.MapForLookup(), idna.StrictDomainName(false), idna.CheckHyphens(false))
)

// MustParse is like Parse but panics if the source cannot be read.
func MustParse(src io.Reader) *ast.Document {
	d, err := Parse(src)
	if err != nil {
		panic("Parse error: " + err.Error())
	}
	return d
}

// Parse reads the whole source and formats it into a document.
// A generator can be used to transform the returned AST into another format.
func Parse(src io.Reader) (*ast.Document, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return &ast.Document{Blocks: Format(string(b))}, nil
}

// Format converts text into one block per line. Empty text yields no blocks.
// The result is freshly allocated on every call and depends only on text.
func Format(text string) []ast.Block {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	blocks := make([]ast.Block, 0, len(lines))
	for _, l := range lines {
		blocks = append(blocks, classify(l))
	}
	return blocks
}

func classify(line string) ast.Block {
	clean := strings.TrimFunc(line, isSpace)
	if clean == "" {
		return &ast.Spacer{}
	}
	n := length(clean)
	switch {
	case wrapped(clean, '*') && n < maxHeading:
		return &ast.Heading{Text: unwrap(clean)}
	case wrapped(clean, '_') && n < maxQuote:
		return &ast.Quote{Text: unwrap(clean)}
	case strings.HasPrefix(clean, "- "):
		return &ast.ListItem{Spans: Spans(strings.Replace(line, "- ", "", 1))}
	case numbered.MatchString(clean):
		if m := ordinal.FindStringSubmatch(clean); m != nil {
			return &ast.ListItem{Ordinal: m[1], Spans: Spans(m[2])}
		}
	}
	return &ast.Paragraph{Spans: Spans(line)}
}

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// length counts UTF-16 code units, so characters outside the Basic
// Multilingual Plane count twice.
func length(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func wrapped(s string, delim byte) bool {
	return s[0] == delim && s[len(s)-1] == delim
}

// unwrap drops one delimiter from each end. A lone delimiter unwraps to "".
func unwrap(s string) string {
	if len(s) < 2 {
		return ""
	}
	return s[1 : len(s)-1]
}

// Spans splits text into inline spans. Concatenating the unstyled spans
// gives back text with the emphasis delimiters removed.
func Spans(text string) []ast.Span {
	var (
		spans []ast.Span
		last  int
	)
	for _, loc := range inline.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			spans = append(spans, ast.PlainText{Text: text[last:loc[0]]})
		}
		spans = append(spans, span(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, ast.PlainText{Text: text[last:]})
	}
	return spans
}

func span(m string) ast.Span {
	switch m[0] {
	case '*':
		return ast.Bold{Text: strings.ReplaceAll(m, "*", "")}
	case '_':
		return ast.Italic{Text: unwrap(m)}
	}
	label, ok := hostLabel(m)
	if !ok {
		return ast.PlainText{Text: m}
	}
	return ast.Link{URL: m, Label: label}
}

// hostLabel reports the hostname of raw without a leading "www.".
// Only the scheme and authority are checked: whatever follows the host is
// passed through by browsers, escapes and all.
func hostLabel(raw string) (string, bool) {
	u, err := url.Parse(authority(raw))
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			return "[" + host + "]", true
		}
		return host, true
	}
	host, err = hosts.ToASCII(host)
	if err != nil || host == "" {
		return "", false
	}
	return strings.TrimPrefix(host, "www."), true
}

// authority cuts raw down to "scheme://host[:port]". Extra slashes after the
// scheme are skipped, as they are for http and https in a browser.
func authority(raw string) string {
	i := strings.Index(raw, "://")
	if i < 0 {
		return raw
	}
	rest := strings.TrimLeft(raw[i+3:], `/\`)
	if j := strings.IndexAny(rest, `/\?#`); j >= 0 {
		rest = rest[:j]
	}
	return raw[:i+3] + rest
}

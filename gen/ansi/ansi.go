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

// Package ansi renders a formatted post for a terminal. The document is
// first written as CommonMark and then styled by glamour.
package ansi // import "slayer.id/slayer/gen/ansi"

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"slayer.id/slayer/ast"
)

type options struct {
	width int
	style string
}

// Option configures Render.
type Option func(*options)

// WithWidth sets the column at which text is wrapped.
func WithWidth(n int) Option {
	return func(o *options) { o.width = n }
}

// WithStyle selects a glamour standard style ("dark", "light", "notty", ...).
// "auto" picks one from the terminal background.
func WithStyle(name string) Option {
	return func(o *options) { o.style = name }
}

// Render styles doc for a terminal.
func Render(doc *ast.Document, opts ...Option) (string, error) {
	o := options{width: 80, style: "auto"}
	for _, opt := range opts {
		opt(&o)
	}
	tro := []glamour.TermRendererOption{glamour.WithWordWrap(o.width)}
	if o.style == "auto" {
		tro = append(tro, glamour.WithAutoStyle())
	} else {
		tro = append(tro, glamour.WithStandardStyle(o.style))
	}
	r, err := glamour.NewTermRenderer(tro...)
	if err != nil {
		return "", err
	}
	return r.Render(Markdown(doc))
}

var (
	escaper = strings.NewReplacer(
		`\`, `\\`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
		"`", "\\`", "<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`,
	)
	listLike = regexp.MustCompile(`^(\d+)([.)])`)
)

// Markdown writes doc as CommonMark. List items follow each other directly;
// every other block is separated by a blank line.
//
// CommonMark numbers an ordered list from its first item, so an item whose
// ordinal does not follow the previous one switches between the "." and ")"
// delimiters to start a list of its own.
func Markdown(doc *ast.Document) string {
	var (
		b     strings.Builder
		prev  ast.Block
		delim = "."
		next  int
	)
	for _, blk := range doc.Blocks {
		if _, ok := blk.(*ast.Spacer); ok {
			continue
		}
		if prev != nil {
			_, a := prev.(*ast.ListItem)
			_, c := blk.(*ast.ListItem)
			if a && c {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		switch t := blk.(type) {
		case *ast.Heading:
			b.WriteString("### " + escaper.Replace(t.Text))
		case *ast.Quote:
			b.WriteString("> " + escaper.Replace(t.Text))
		case *ast.ListItem:
			marker := "- "
			if t.Ordinal != "" {
				num := strings.TrimSuffix(t.Ordinal, ".")
				n, _ := strconv.Atoi(num)
				if p, ok := prev.(*ast.ListItem); !ok || p.Ordinal == "" {
					delim = "."
				} else if n != next {
					delim = flip(delim)
				}
				next = n + 1
				marker = num + delim + " "
			}
			b.WriteString(marker + strings.TrimLeft(inline(t.Spans), " \t"))
		case *ast.Paragraph:
			b.WriteString(lineStart(inline(t.Spans)))
		}
		prev = blk
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func flip(delim string) string {
	if delim == "." {
		return ")"
	}
	return "."
}

func inline(spans []ast.Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch t := s.(type) {
		case ast.PlainText:
			b.WriteString(escaper.Replace(t.Text))
		case ast.Bold:
			b.WriteString(emphasis(t.Text, "**"))
		case ast.Italic:
			b.WriteString(emphasis(t.Text, "*"))
		case ast.Link:
			dest := strings.NewReplacer("<", "%3C", ">", "%3E").Replace(t.URL)
			b.WriteString("[" + escaper.Replace(t.Label) + "](<" + dest + ">)")
		}
	}
	return b.String()
}

// emphasis keeps surrounding spaces outside the delimiters, where
// CommonMark requires them to be.
func emphasis(s, delim string) string {
	core := strings.TrimSpace(s)
	if core == "" {
		return s
	}
	i := strings.Index(s, core)
	return s[:i] + delim + escaper.Replace(core) + delim + s[i+len(core):]
}

// lineStart stops a paragraph from reading as a list, quote or code block.
func lineStart(s string) string {
	s = strings.TrimLeft(s, " \t")
	switch {
	case strings.HasPrefix(s, "-"), strings.HasPrefix(s, "+"), strings.HasPrefix(s, "="):
		return `\` + s
	case listLike.MatchString(s):
		return listLike.ReplaceAllString(s, `$1\$2`)
	}
	return s
}

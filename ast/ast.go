package ast

import "strings"

//go:generate sumgen Node = *Document | *Heading | *Quote | *ListItem | *Paragraph | *Spacer | PlainText | Bold | Italic | Link
type Node interface {
	node()
}

//go:generate sumgen Block = *Heading | *Quote | *ListItem | *Paragraph | *Spacer
type Block interface {
	Node
	block()
}

//go:generate sumgen Span = PlainText | Bold | Italic | Link
type Span interface {
	Node
	span()
	// Display returns the text a reader sees, without styling.
	Display() string
}

type Document struct {
	Blocks []Block
}

type Heading struct {
	Text string
}

type Quote struct {
	Text string
}

// ListItem is a bulleted item when Ordinal is empty, otherwise a numbered
// item whose Ordinal keeps the trailing dot ("3.").
type ListItem struct {
	Ordinal string
	Spans   []Span
}

type Paragraph struct {
	Spans []Span
}

// Spacer stands in for one blank source line.
type Spacer struct{}

type PlainText struct {
	Text string
}

type Bold struct {
	Text string
}

type Italic struct {
	Text string
}

type Link struct {
	URL   string
	Label string
}

func (*Document) node()  {}
func (*Heading) node()   {}
func (*Quote) node()     {}
func (*ListItem) node()  {}
func (*Paragraph) node() {}
func (*Spacer) node()    {}
func (PlainText) node()  {}
func (Bold) node()       {}
func (Italic) node()     {}
func (Link) node()       {}

func (*Heading) block()   {}
func (*Quote) block()     {}
func (*ListItem) block()  {}
func (*Paragraph) block() {}
func (*Spacer) block()    {}

func (PlainText) span() {}
func (Bold) span()      {}
func (Italic) span()    {}
func (Link) span()      {}

func (t PlainText) Display() string { return t.Text }
func (b Bold) Display() string      { return b.Text }
func (i Italic) Display() string    { return i.Text }
func (l Link) Display() string      { return l.Label }

// Unstyled concatenates the text of spans without styling. Links contribute
// the URL they were written as, so the result matches the tokenized source
// with emphasis delimiters removed.
func Unstyled(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if l, ok := s.(Link); ok {
			b.WriteString(l.URL)
			continue
		}
		b.WriteString(s.Display())
	}
	return b.String()
}

func Walk(n Node, f Walker) (Node, error) {
	if n != nil {
		nn, e := f(n)
		if e != nil {
			return n, e
		}
		n = nn
		switch t := n.(type) {
		case *Document:
			for i := 0; i < len(t.Blocks); i++ {
				s, e := f(t.Blocks[i])
				if e != nil {
					return n, e
				}
				if s == nil {
					t.Blocks = append(t.Blocks[:i], t.Blocks[i+1:]...)
					i--
				} else {
					t.Blocks[i] = s.(Block)
				}
			}
		case *ListItem:
			t.Spans, e = walkSpans(t.Spans, f)
			if e != nil {
				return n, e
			}
		case *Paragraph:
			t.Spans, e = walkSpans(t.Spans, f)
			if e != nil {
				return n, e
			}
		}
	}
	return n, nil
}

func walkSpans(spans []Span, f Walker) ([]Span, error) {
	for i := 0; i < len(spans); i++ {
		s, e := f(spans[i])
		if e != nil {
			return spans, e
		}
		if s == nil {
			spans = append(spans[:i], spans[i+1:]...)
			i--
		} else {
			spans[i] = s.(Span)
		}
	}
	return spans, nil
}

type Walker func(Node) (Node, error)

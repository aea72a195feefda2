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

// Package html converts a formatted post into html output.
// Output is built as a node tree and serialized, so all text is escaped.
// An optional filter command, split according to the Bourne shell's
// word-splitting rules, can post-process the generated markup.
//
// AST nodes correspond to the following HTML tags:
// 	Heading                     <h3></h3>
// 	Quote                       <blockquote><p></p></blockquote>
// 	ListItem (bulleted)         <div class="list-item bullet"><span></span></div>
// 	ListItem (numbered)         <div class="list-item numbered"><span class="ordinal"></span><span></span></div>
// 	Paragraph                   <p></p>
// 	Spacer                      <div class="spacer"></div>
// 	Bold                        <strong></strong>
// 	Italic                      <em></em>
// 	Link                        <a href="" target="_blank" rel="noopener noreferrer"></a>
package html // import "slayer.id/slayer/gen/html"

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"slayer.id/slayer/ast"
	"slayer.id/slayer/gen"
)

type syncWriter struct {
	m sync.Mutex
	w io.Writer
}

func (s *syncWriter) Write(p []byte) (n int, err error) {
	s.m.Lock()
	defer s.m.Unlock()
	n, err = s.w.Write(p)
	return
}

type stickyCountWriter struct {
	n   int64
	err error
	w   io.Writer
}

func (c *stickyCountWriter) Write(p []byte) (n int, err error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err = c.w.Write(p)
	c.err = err
	c.n += int64(n)
	return
}

// Generator represents a non-reusable HTML output generator for an *ast.Document.
type Generator struct {
	// Stdout and Stderr specify the generator's standard output and standard error.
	//
	// HTML output will be written to standard out. Standard error is only
	// written by the Filter process.
	//
	// If Stdout == Stderr, at most one goroutine at a time will call Write.
	Stdout io.Writer
	Stderr io.Writer

	// Filter is a command line the rendered HTML is piped through.
	// Its standard output replaces the generator's output.
	Filter string

	ctx      context.Context
	doc      *ast.Document
	waitdone chan error

	m     sync.Mutex
	pipes []io.Closer
}

// Gen returns the Generator struct to convert the given document into HTML output.
//
// It sets only the document in the returned structure.
func Gen(doc *ast.Document) *Generator {
	return &Generator{ctx: context.TODO(), doc: doc}
}

// GenContext is like Gen but includes a context.
//
// The provided context is used both to halt HTML generation
// after rendering a block, and to kill a running Filter process.
func GenContext(ctx context.Context, doc *ast.Document) *Generator {
	if ctx == nil {
		panic("nil context")
	}
	return &Generator{ctx: ctx, doc: doc}
}

// Start starts the generator but does not wait for it to complete.
func (g *Generator) Start() error {
	if g.waitdone != nil {
		return fmt.Errorf("already started")
	}
	if g.Stdout == nil {
		g.Stdout = io.Discard
	}
	if g.Stderr == nil {
		g.Stderr = io.Discard
	}
	if g.Stdout == g.Stderr {
		g.Stdout = &syncWriter{w: g.Stdout}
		g.Stderr = g.Stdout
	}
	g.waitdone = make(chan error, 1)
	go func() {
		err := g.gen()
		g.m.Lock()
		for _, p := range g.pipes {
			p.Close()
		}
		g.pipes = nil
		g.m.Unlock()
		g.waitdone <- err
	}()
	return nil
}

// Wait waits for the generator to complete and finish copying to
// Stdout and Stderr. It is an error to call Wait before Start
// has been called.
//
// Wait will release any resources associated with the generator.
func (g *Generator) Wait() error {
	if g.waitdone == nil {
		return fmt.Errorf("not started")
	}
	err := <-g.waitdone
	close(g.waitdone)
	return err
}

// Run starts the generator and waits for it to complete, returning
// any errors enountered.
func (g *Generator) Run() error {
	if err := g.Start(); err != nil {
		return err
	}
	return g.Wait()
}

// StdoutPipe returns a pipe that is connected to the generator's
// standard output.
//
// It is invalid to call Wait until all reads from the pipe have completed.
// For the same reason, it is invalid to call Run when using StdoutPipe.
func (g *Generator) StdoutPipe() (io.Reader, error) {
	if g.Stdout != nil {
		return nil, fmt.Errorf("Stdout already set")
	}
	pr, pw := io.Pipe()
	g.Stdout = pw
	g.pipes = append(g.pipes, pw)
	return pr, nil
}

// StderrPipe returns a pipe that is connected to the generator's
// standard error.
//
// It is invalid to call Wait until all reads from the pipe have completed.
// For the same reason, it is invalid to call Run when using StderrPipe.
func (g *Generator) StderrPipe() (io.Reader, error) {
	if g.Stderr != nil {
		return nil, fmt.Errorf("Stderr already set")
	}
	pr, pw := io.Pipe()
	g.Stderr = pw
	g.pipes = append(g.pipes, pw)
	return pr, nil
}

// Output runs the generator and returns its standard output.
func (g *Generator) Output() ([]byte, error) {
	if g.Stdout != nil {
		return nil, fmt.Errorf("Stdout already set")
	}
	var stdout bytes.Buffer
	g.Stdout = &stdout
	err := g.Run()
	return stdout.Bytes(), err
}

// CombinedOutput runs the generator and returns its combined
// standard output and standard error.
func (g *Generator) CombinedOutput() ([]byte, error) {
	if g.Stdout != nil {
		return nil, fmt.Errorf("Stdout already set")
	}
	if g.Stderr != nil {
		return nil, fmt.Errorf("Stderr already set")
	}
	var b bytes.Buffer
	g.Stdout = &b
	g.Stderr = &b
	err := g.Run()
	return b.Bytes(), err
}

func (g *Generator) gen() error {
	cw := &stickyCountWriter{0, nil, g.Stdout}
	var (
		w        io.Writer = cw
		filtered bytes.Buffer
	)
	if g.Filter != "" {
		w = &filtered
	}
	if g.doc != nil {
	render:
		for _, b := range g.doc.Blocks {
			select {
			case <-g.ctx.Done():
				break render
			default:
				if err := nethtml.Render(w, Node(b)); err != nil {
					return err
				}
			}
		}
	}
	if g.Filter != "" {
		c := &gen.Command{Ctx: g.ctx, Stderr: g.Stderr}
		if err := c.Run(g.Filter, &filtered, cw); err != nil {
			return err
		}
	}
	return cw.err
}

// Node builds the HTML element for a single block.
func Node(b ast.Block) *nethtml.Node {
	switch t := b.(type) {
	case *ast.Heading:
		return element(atom.H3, text(t.Text))
	case *ast.Quote:
		return element(atom.Blockquote, element(atom.P, text(t.Text)))
	case *ast.ListItem:
		body := element(atom.Span, spans(t.Spans)...)
		if t.Ordinal == "" {
			return withClass(element(atom.Div, body), "list-item bullet")
		}
		ord := withClass(element(atom.Span, text(t.Ordinal)), "ordinal")
		return withClass(element(atom.Div, ord, body), "list-item numbered")
	case *ast.Paragraph:
		return element(atom.P, spans(t.Spans)...)
	case *ast.Spacer:
		return withClass(element(atom.Div), "spacer")
	}
	panic(fmt.Sprintf("html: unexpected block %T", b))
}

func spans(ss []ast.Span) []*nethtml.Node {
	nodes := make([]*nethtml.Node, 0, len(ss))
	for _, s := range ss {
		switch t := s.(type) {
		case ast.PlainText:
			nodes = append(nodes, text(t.Text))
		case ast.Bold:
			nodes = append(nodes, element(atom.Strong, text(t.Text)))
		case ast.Italic:
			nodes = append(nodes, element(atom.Em, text(t.Text)))
		case ast.Link:
			a := element(atom.A, text(t.Label))
			a.Attr = []nethtml.Attribute{
				{Key: "href", Val: t.URL},
				{Key: "target", Val: "_blank"},
				{Key: "rel", Val: "noopener noreferrer"},
			}
			nodes = append(nodes, a)
		}
	}
	return nodes
}

func element(a atom.Atom, children ...*nethtml.Node) *nethtml.Node {
	n := &nethtml.Node{Type: nethtml.ElementNode, DataAtom: a, Data: a.String()}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func withClass(n *nethtml.Node, class string) *nethtml.Node {
	n.Attr = append(n.Attr, nethtml.Attribute{Key: "class", Val: class})
	return n
}

func text(s string) *nethtml.Node {
	return &nethtml.Node{Type: nethtml.TextNode, Data: s}
}

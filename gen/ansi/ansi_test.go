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

package ansi

import (
	"strings"
	"testing"

	"slayer.id/slayer/parser"
)

type smallcase struct {
	in   string
	want string
}

var markdownSmall = []smallcase{
	{"", ""},
	{"*Outlook*", "### Outlook\n"},
	{"*#1 pick*", "### \\#1 pick\n"},
	{"_Be greedy when others are fearful_", "> Be greedy when others are fearful\n"},
	{"- a\n- b\n3. c", "- a\n- b\n3. c\n"},
	{"- a\n\nplain", "- a\n\nplain\n"},
	{"1. a\n2. b", "1. a\n2. b\n"},
	{"3. a\n7. b\n8. c\n1. d", "3. a\n7) b\n8) c\n1. d\n"},
	{"5. a\n- b\n9. c", "5. a\n- b\n9. c\n"},
	{"Buy *low* sell _high_", "Buy **low** sell *high*\n"},
	{"*** lonely ** stars", "\\* **lonely**  stars\n"},
	{"see https://www.example.com/x", "see [example.com](<https://www.example.com/x>)\n"},
	{"2) not a list", "2\\) not a list\n"},
	{"   indented", "indented\n"},
	{"a [b] <c>", "a \\[b\\] \\<c\\>\n"},
}

func TestMarkdown(t *testing.T) {
	for i, test := range markdownSmall {
		got := Markdown(parser.MustParse(strings.NewReader(test.in)))
		if got != test.want {
			t.Errorf("case %d, in %q,\nwant %q,\ngot %q", i, test.in, test.want, got)
		}
	}
}

func TestRenderKeepsOrdinals(t *testing.T) {
	doc := parser.MustParse(strings.NewReader("3. first\n7. second"))
	out, err := Render(doc, WithStyle("notty"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"3. first", "7. second"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output is missing %q:\n%s", want, out)
		}
	}
}

func TestRender(t *testing.T) {
	doc := parser.MustParse(strings.NewReader("*Market Wrap*\nBTC reclaims *70k* per https://www.coindesk.com/x"))
	out, err := Render(doc, WithStyle("notty"), WithWidth(120))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Market Wrap", "70k", "coindesk.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output is missing %q:\n%s", want, out)
		}
	}
}

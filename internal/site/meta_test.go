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
	"testing"

	"github.com/stretchr/testify/assert"

	"slayer.id/slayer/internal/store"
)

func TestDescribe(t *testing.T) {
	long := strings.Repeat("a", 150) + "\nline two continues past the limit"
	for _, c := range []struct {
		name    string
		content string
		want    string
	}{
		{"short", "BTC up\nETH down", "BTC up ETH down..."},
		{"empty", "", "Market Intelligence Update"},
		{"truncated", long, strings.Repeat("a", 150) + " line two ..."},
		{"runes", strings.Repeat("₿", 200), strings.Repeat("₿", 160) + "..."},
	} {
		t.Run(c.name, func(t *testing.T) {
			p := &store.Post{Title: "T", Content: c.content, ImageURL: "https://cdn/x.png"}
			m := Describe(p, "https://slayer.id/btc/1")
			assert.Equal(t, c.want, m.Description)
			assert.Equal(t, "T", m.Title)
			assert.Equal(t, "https://cdn/x.png", m.Image)
			assert.Equal(t, "https://slayer.id/btc/1", m.URL)
			assert.Equal(t, "article", m.Type)
			assert.Equal(t, "summary_large_image", m.Card)
		})
	}
}

func TestDescribeMissing(t *testing.T) {
	assert.Equal(t, Meta{Title: "Post Not Found"}, Describe(nil, "https://slayer.id/btc/1"))
}

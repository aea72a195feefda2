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

package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category is the section a post is filed under.
type Category string

const (
	News Category = "news"
	BTC  Category = "btc"
	Alt  Category = "alt"

	// All selects every category when listing. It is never stored.
	All Category = "all"
)

// Categories lists the storable categories in feed tab order.
var Categories = []Category{News, BTC, Alt}

func (c Category) Valid() bool {
	switch c {
	case News, BTC, Alt:
		return true
	}
	return false
}

// Reaction is one of the three sentiment votes a reader can cast.
type Reaction string

const (
	Bullish Reaction = "bullish"
	Bearish Reaction = "bearish"
	Rocket  Reaction = "rocket"
)

func (r Reaction) Valid() bool {
	switch r {
	case Bullish, Bearish, Rocket:
		return true
	}
	return false
}

// Counts holds the vote tally of a post.
type Counts struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Rocket  int `json:"rocket"`
}

// Of returns the tally for r.
func (c Counts) Of(r Reaction) int {
	switch r {
	case Bullish:
		return c.Bullish
	case Bearish:
		return c.Bearish
	case Rocket:
		return c.Rocket
	}
	return 0
}

type Post struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Category  Category   `json:"category"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Reactions Counts     `json:"reactions"`
}

// Edited reports whether the post was changed after publication.
func (p Post) Edited() bool {
	return p.UpdatedAt != nil
}

// ErrorKind classifies store failures.
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindInvalid  ErrorKind = "invalid"
	KindStorage  ErrorKind = "storage"
)

// ErrNotFound is wrapped by every not_found OpError.
var ErrNotFound = errors.New("post not found")

// OpError describes a failed store operation.
type OpError struct {
	Op   string
	Kind ErrorKind
	ID   string // optional
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.ID != "" {
		base += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an OpError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}

func validate(op string, p Post) error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return &OpError{Op: op, Kind: KindInvalid, ID: p.ID, Err: errors.New("title is empty")}
	case !p.Category.Valid():
		return &OpError{Op: op, Kind: KindInvalid, ID: p.ID, Err: fmt.Errorf("unknown category %q", p.Category)}
	}
	return nil
}

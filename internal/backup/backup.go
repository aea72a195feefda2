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

// Package backup dumps posts to an xz-compressed stream of JSON lines and
// loads them back.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"slayer.id/slayer/internal/store"
)

type Lister interface {
	List(ctx context.Context, c store.Category) ([]store.Post, error)
}

type Restorer interface {
	Restore(ctx context.Context, p store.Post) error
}

// Export writes every post to w and returns how many were written.
func Export(ctx context.Context, w io.Writer, l Lister) (int, error) {
	posts, err := l.List(ctx, store.All)
	if err != nil {
		return 0, err
	}
	zw, err := xz.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	enc := json.NewEncoder(zw)
	for i, p := range posts {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := enc.Encode(p); err != nil {
			return i, fmt.Errorf("backup: post %s: %w", p.ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return len(posts), fmt.Errorf("backup: %w", err)
	}
	return len(posts), nil
}

// Import restores every post in r, keeping IDs, timestamps and tallies.
// It stops at the first bad record.
func Import(ctx context.Context, r io.Reader, rs Restorer) (int, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	dec := json.NewDecoder(zr)
	n := 0
	for {
		var p store.Post
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("backup: record %d: %w", n+1, err)
		}
		if err := rs.Restore(ctx, p); err != nil {
			return n, fmt.Errorf("backup: record %d: %w", n+1, err)
		}
		n++
	}
}

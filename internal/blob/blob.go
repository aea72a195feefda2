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

// Package blob stores uploaded media as flat files under one directory.
package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/zeebo/blake3"
)

var (
	ErrInvalidKey = errors.New("invalid object key")
	ErrNotFound   = errors.New("object not found")
)

// Object describes a stored upload. Sum is the hex BLAKE3-256 digest of the
// content.
type Object struct {
	Key  string
	Size int64
	Sum  string
}

// FS keeps objects in a directory and serves them below a public base URL.
type FS struct {
	dir     string
	baseURL string
}

// NewFS creates dir if needed.
func NewFS(dir, baseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &FS{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// ObjectName names an upload the way the admin screen always has:
// the upload time in Unix milliseconds, a dash, then the file's base name with
// every whitespace character replaced by a dash.
func ObjectName(now time.Time, filename string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, filepath.Base(filename))
	return fmt.Sprintf("%d-%s", now.UnixMilli(), name)
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Upload stores r under key, replacing any object with that key. The file
// only appears once it is complete.
func (s *FS) Upload(ctx context.Context, key string, r io.Reader) (Object, error) {
	if err := checkKey(key); err != nil {
		return Object{}, err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	h := blake3.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), &ctxReader{ctx, r})
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, key)); err != nil {
		os.Remove(tmpPath)
		return Object{}, fmt.Errorf("failed to rename %s: %w", key, err)
	}
	return Object{Key: key, Size: n, Sum: hex.EncodeToString(h.Sum(nil))}, nil
}

// PublicURL returns where key is served from. It does not check that the
// object exists.
func (s *FS) PublicURL(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}

// Open returns the stored file for key.
func (s *FS) Open(key string) (*os.File, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

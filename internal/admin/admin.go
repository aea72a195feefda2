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

// Package admin implements the publishing operations of the admin console:
// creating, editing and deleting posts with an optional image upload.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"slayer.id/slayer/internal/blob"
	"slayer.id/slayer/internal/logging"
	"slayer.id/slayer/internal/store"
)

// Posts is the part of the record store the editor writes to.
type Posts interface {
	Insert(ctx context.Context, p store.Post) (store.Post, error)
	Update(ctx context.Context, p store.Post) (store.Post, error)
	Get(ctx context.Context, id string) (store.Post, error)
	Delete(ctx context.Context, id string) error
}

// Blobs is where uploaded images go.
type Blobs interface {
	Upload(ctx context.Context, key string, r io.Reader) (blob.Object, error)
	PublicURL(key string) string
}

// Draft is the editor form. An empty ID publishes a new post.
type Draft struct {
	ID       string
	Title    string
	Content  string
	Category store.Category
	ImageURL string
}

// Upload is an image picked in the form.
type Upload struct {
	Name string
	Body io.Reader
}

type Editor struct {
	Posts Posts
	Blobs Blobs
	Now   func() time.Time // defaults to time.Now
	Log   *slog.Logger
}

func (e *Editor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Submit publishes d, or saves it over the existing post when d.ID is set.
// A non-nil upload replaces d.ImageURL with the uploaded object's public URL.
func (e *Editor) Submit(ctx context.Context, d Draft, up *Upload) (store.Post, error) {
	if strings.TrimSpace(d.Title) == "" {
		return store.Post{}, &store.OpError{Op: "submit", Kind: store.KindInvalid, ID: d.ID, Err: errors.New("title is empty")}
	}
	if !d.Category.Valid() {
		return store.Post{}, &store.OpError{Op: "submit", Kind: store.KindInvalid, ID: d.ID, Err: fmt.Errorf("unknown category %q", d.Category)}
	}
	log := logging.FromContext(ctx, e.Log)
	if up != nil {
		if e.Blobs == nil {
			return store.Post{}, errors.New("admin: no media store configured")
		}
		obj, err := e.Blobs.Upload(ctx, blob.ObjectName(e.now(), up.Name), up.Body)
		if err != nil {
			return store.Post{}, fmt.Errorf("upload image: %w", err)
		}
		d.ImageURL = e.Blobs.PublicURL(obj.Key)
		log.Info("image uploaded", "key", obj.Key, "size", obj.Size, "blake3", obj.Sum)
	}
	p := store.Post{
		ID:       d.ID,
		Title:    d.Title,
		Content:  d.Content,
		Category: d.Category,
		ImageURL: d.ImageURL,
	}
	if d.ID != "" {
		p, err := e.Posts.Update(ctx, p)
		if err != nil {
			return store.Post{}, err
		}
		log.Info("post updated", "id", p.ID, "category", p.Category)
		return p, nil
	}
	p, err := e.Posts.Insert(ctx, p)
	if err != nil {
		return store.Post{}, err
	}
	log.Info("post published", "id", p.ID, "category", p.Category)
	return p, nil
}

// Load fills the form from an existing post for editing.
func (e *Editor) Load(ctx context.Context, id string) (Draft, error) {
	p, err := e.Posts.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		ID:       p.ID,
		Title:    p.Title,
		Content:  p.Content,
		Category: p.Category,
		ImageURL: p.ImageURL,
	}, nil
}

func (e *Editor) Delete(ctx context.Context, id string) error {
	if err := e.Posts.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx, e.Log).Info("post deleted", "id", id)
	return nil
}

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

// Package store keeps posts in a SQLite database.
//
// The pure-Go modernc.org/sqlite driver is used by default. Building with the
// cgo_sqlite tag switches to github.com/mattn/go-sqlite3.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL,
		image_url  TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER,
		bullish    INTEGER NOT NULL DEFAULT 0,
		bearish    INTEGER NOT NULL DEFAULT 0,
		rocket     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_at ON posts (created_at DESC)`,
}

const columns = `id, title, content, category, image_url, created_at, updated_at, bullish, bearish, rocket`

// Store is safe for concurrent use.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs replaces the random UUID generator for new posts.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Open opens or creates the database at path and migrates it.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, &OpError{Op: "open", Kind: KindStorage, Err: err}
	}
	s := &Store{db: db, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, &OpError{Op: "migrate", Kind: KindStorage, Err: err}
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// Insert publishes p under a fresh ID. Reactions and timestamps in p are
// ignored.
func (s *Store) Insert(ctx context.Context, p Post) (Post, error) {
	if err := validate("insert", p); err != nil {
		return Post{}, err
	}
	p.ID = s.newID()
	p.CreatedAt = s.stamp()
	p.UpdatedAt = nil
	p.Reactions = Counts{}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, content, category, image_url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, string(p.Category), p.ImageURL, p.CreatedAt.UnixNano())
	if err != nil {
		return Post{}, &OpError{Op: "insert", Kind: KindStorage, Err: err}
	}
	return p, nil
}

// Update replaces the editable fields of the post with p.ID and marks it as
// updated. Reactions and the creation time are kept.
func (s *Store) Update(ctx context.Context, p Post) (Post, error) {
	if p.ID == "" {
		return Post{}, &OpError{Op: "update", Kind: KindInvalid, Err: errors.New("id is empty")}
	}
	if err := validate("update", p); err != nil {
		return Post{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE posts SET title = ?, content = ?, category = ?, image_url = ?, updated_at = ?
		WHERE id = ? RETURNING `+columns,
		p.Title, p.Content, string(p.Category), p.ImageURL, s.stamp().UnixNano(), p.ID)
	return scanOne("update", p.ID, row)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return &OpError{Op: "delete", Kind: KindStorage, ID: id, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &OpError{Op: "delete", Kind: KindNotFound, ID: id, Err: ErrNotFound}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM posts WHERE id = ?`, id)
	return scanOne("get", id, row)
}

// List returns the posts in category c, newest first. The empty category and
// All select every post.
func (s *Store) List(ctx context.Context, c Category) ([]Post, error) {
	q := `SELECT ` + columns + ` FROM posts`
	var args []any
	switch {
	case c == "" || c == All:
	case c.Valid():
		q += ` WHERE category = ?`
		args = append(args, string(c))
	default:
		return nil, &OpError{Op: "list", Kind: KindInvalid, Err: fmt.Errorf("unknown category %q", c)}
	}
	q += ` ORDER BY created_at DESC, rowid DESC`
	return s.query(ctx, "list", q, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search returns the posts whose title or content contains q, newest first.
// Matching ignores ASCII case. An empty q matches every post.
func (s *Store) Search(ctx context.Context, q string) ([]Post, error) {
	pattern := "%" + likeEscaper.Replace(q) + "%"
	return s.query(ctx, "search",
		`SELECT `+columns+` FROM posts
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, rowid DESC`,
		pattern, pattern)
}

// AdjustReaction adds delta to the r tally of post id and returns the new
// counts. Tallies never drop below zero.
func (s *Store) AdjustReaction(ctx context.Context, id string, r Reaction, delta int) (Counts, error) {
	var col string
	switch r {
	case Bullish:
		col = "bullish"
	case Bearish:
		col = "bearish"
	case Rocket:
		col = "rocket"
	default:
		return Counts{}, &OpError{Op: "react", Kind: KindInvalid, ID: id, Err: fmt.Errorf("unknown reaction %q", r)}
	}
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`UPDATE posts SET `+col+` = MAX(0, `+col+` + ?) WHERE id = ? RETURNING bullish, bearish, rocket`,
		delta, id).Scan(&c.Bullish, &c.Bearish, &c.Rocket)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Counts{}, &OpError{Op: "react", Kind: KindNotFound, ID: id, Err: ErrNotFound}
	case err != nil:
		return Counts{}, &OpError{Op: "react", Kind: KindStorage, ID: id, Err: err}
	}
	return c, nil
}

// Restore writes p exactly as given, replacing any post with the same ID.
func (s *Store) Restore(ctx context.Context, p Post) error {
	if p.ID == "" || p.CreatedAt.IsZero() {
		return &OpError{Op: "restore", Kind: KindInvalid, ID: p.ID, Err: errors.New("id and created_at are required")}
	}
	if err := validate("restore", p); err != nil {
		return err
	}
	var updated sql.NullInt64
	if p.UpdatedAt != nil {
		updated = sql.NullInt64{Int64: p.UpdatedAt.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, content = excluded.content, category = excluded.category,
			image_url = excluded.image_url, created_at = excluded.created_at,
			updated_at = excluded.updated_at, bullish = excluded.bullish,
			bearish = excluded.bearish, rocket = excluded.rocket`,
		p.ID, p.Title, p.Content, string(p.Category), p.ImageURL, p.CreatedAt.UnixNano(), updated,
		max(p.Reactions.Bullish, 0), max(p.Reactions.Bearish, 0), max(p.Reactions.Rocket, 0))
	if err != nil {
		return &OpError{Op: "restore", Kind: KindStorage, ID: p.ID, Err: err}
	}
	return nil
}

func (s *Store) query(ctx context.Context, op, q string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &OpError{Op: op, Kind: KindStorage, Err: err}
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, &OpError{Op: op, Kind: KindStorage, Err: err}
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &OpError{Op: op, Kind: KindStorage, Err: err}
	}
	return posts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Post, error) {
	var (
		p        Post
		category string
		created  int64
		updated  sql.NullInt64
	)
	err := sc.Scan(&p.ID, &p.Title, &p.Content, &category, &p.ImageURL, &created, &updated,
		&p.Reactions.Bullish, &p.Reactions.Bearish, &p.Reactions.Rocket)
	if err != nil {
		return Post{}, err
	}
	p.Category = Category(category)
	p.CreatedAt = time.Unix(0, created).UTC()
	if updated.Valid {
		t := time.Unix(0, updated.Int64).UTC()
		p.UpdatedAt = &t
	}
	return p, nil
}

func scanOne(op, id string, row *sql.Row) (Post, error) {
	p, err := scan(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Post{}, &OpError{Op: op, Kind: KindNotFound, ID: id, Err: ErrNotFound}
	case err != nil:
		return Post{}, &OpError{Op: op, Kind: KindStorage, ID: id, Err: err}
	}
	return p, nil
}

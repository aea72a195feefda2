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

// Package reaction records which sentiment a visitor picked for a post and
// keeps the post's tallies in step with that choice.
//
// A visitor holds at most one vote per post. Picking the same reaction again
// changes nothing; picking a different one moves the vote.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"slayer.id/slayer/internal/store"
)

var (
	// ErrBusy is returned while another vote by the same visitor is being
	// recorded.
	ErrBusy            = errors.New("vote already in progress")
	ErrUnknownReaction = errors.New("unknown reaction")
)

// Prefs is the visitor-side key-value memory of past votes.
type Prefs interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryPrefs is a Prefs held in memory. The zero value is ready to use.
type MemoryPrefs struct {
	mu sync.Mutex
	m  map[string]string
}

func (p *MemoryPrefs) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok
}

func (p *MemoryPrefs) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]string)
	}
	p.m[key] = value
}

// Counter adjusts the stored tallies. *store.Store implements it.
type Counter interface {
	AdjustReaction(ctx context.Context, id string, r store.Reaction, delta int) (store.Counts, error)
}

// Key is the Prefs key under which the vote for postID is remembered.
func Key(postID string) string {
	return "vote_" + postID
}

// Inflight tracks votes being recorded. The zero value is ready to use.
type Inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (f *Inflight) begin(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return false
	}
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *Inflight) end(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// Voter casts votes for one visitor.
type Voter struct {
	Prefs   Prefs
	Counter Counter

	// Visitor identifies the visitor within a shared Inflight. When Inflight
	// is nil the Voter guards only its own calls.
	Visitor  string
	Inflight *Inflight

	local Inflight
}

// Vote records reaction r on postID and returns the resulting tallies.
// changed is false when r was already the visitor's choice.
func (v *Voter) Vote(ctx context.Context, postID string, r store.Reaction) (counts store.Counts, changed bool, err error) {
	if !r.Valid() {
		return store.Counts{}, false, fmt.Errorf("%w: %q", ErrUnknownReaction, r)
	}
	inflight := v.Inflight
	if inflight == nil {
		inflight = &v.local
	}
	key := Key(postID)
	guard := v.Visitor + "\x00" + key
	if !inflight.begin(guard) {
		return store.Counts{}, false, ErrBusy
	}
	defer inflight.end(guard)

	prev, voted := v.Prefs.Get(key)
	old := store.Reaction(prev)
	if voted && old == r {
		counts, err = v.Counter.AdjustReaction(ctx, postID, r, 0)
		return counts, false, err
	}
	if voted && old.Valid() {
		if _, err := v.Counter.AdjustReaction(ctx, postID, old, -1); err != nil {
			return store.Counts{}, false, err
		}
	}
	counts, err = v.Counter.AdjustReaction(ctx, postID, r, 1)
	if err != nil {
		return store.Counts{}, false, err
	}
	v.Prefs.Set(key, string(r))
	return counts, true, nil
}

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
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"slayer.id/slayer/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 16
)

// countsUpdate is pushed to every subscriber of a post when its tallies change.
type countsUpdate struct {
	PostID string       `json:"post_id"`
	Counts store.Counts `json:"counts"`
}

type subscriber struct {
	hub    *hub
	conn   *websocket.Conn
	postID string
	send   chan []byte
}

// hub fans tally updates out to the websocket subscribers of each post.
// All subscriber bookkeeping happens on the run goroutine.
type hub struct {
	subs       map[string]map[*subscriber]bool
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan countsUpdate
	done       chan struct{}
	closeOnce  sync.Once
	log        *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	h := &hub{
		subs:       make(map[string]map[*subscriber]bool),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan countsUpdate, 256),
		done:       make(chan struct{}),
		log:        log,
	}
	go h.run()
	return h
}

func (h *hub) run() {
	for {
		select {
		case s := <-h.register:
			if h.subs[s.postID] == nil {
				h.subs[s.postID] = make(map[*subscriber]bool)
			}
			h.subs[s.postID][s] = true
			h.log.Debug("websocket_event", "event", "client_connected", "post_id", s.postID, "client_count", len(h.subs[s.postID]))

		case s := <-h.unregister:
			h.drop(s)
			h.log.Debug("websocket_event", "event", "client_disconnected", "post_id", s.postID, "client_count", len(h.subs[s.postID]))

		case u := <-h.broadcast:
			data, err := json.Marshal(u)
			if err != nil {
				h.log.Error("failed to marshal counts update", "error", err)
				continue
			}
			for s := range h.subs[u.PostID] {
				select {
				case s.send <- data:
				default:
					// too slow; the write pump closes the socket
					h.drop(s)
				}
			}

		case <-h.done:
			for _, subs := range h.subs {
				for s := range subs {
					close(s.send)
				}
			}
			h.subs = nil
			return
		}
	}
}

func (h *hub) drop(s *subscriber) {
	subs := h.subs[s.postID]
	if !subs[s] {
		return
	}
	delete(subs, s)
	close(s.send)
	if len(subs) == 0 {
		delete(h.subs, s.postID)
	}
}

// publish queues u without blocking. Updates are dropped when the queue is
// full or the hub is closed.
func (h *hub) publish(u countsUpdate) {
	select {
	case <-h.done:
	case h.broadcast <- u:
	default:
		h.log.Warn("broadcast queue full, dropping update", "post_id", u.PostID)
	}
}

// join registers s and starts its pumps. It reports false if the hub is
// closed.
func (h *hub) join(s *subscriber) bool {
	select {
	case h.register <- s:
	case <-h.done:
		return false
	}
	go s.writePump()
	go s.readPump()
	return true
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// readPump discards client messages and keeps the read deadline fresh.
func (s *subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.log.Debug("websocket unexpected close", "error", err)
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

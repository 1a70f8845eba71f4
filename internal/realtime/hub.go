// Package realtime runs the websocket push transport: sessions, the channel
// subscription index, and the per-connection event loop.
package realtime

import (
	"sync"

	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
)

// UserChannel is the private channel every bound session of a user joins.
func UserChannel(userID string) string {
	return "user:" + userID
}

// RoomChannel is the shared channel for a room.
func RoomChannel(roomID string) string {
	return "room:" + roomID
}

// Hub indexes open sessions by channel.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	channels map[string]map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		channels: make(map[string]map[*Session]struct{}),
	}
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// remove drops s and all of its subscriptions.
func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range s.subs {
		h.unsubscribeLocked(s, ch)
	}
	delete(h.sessions, s)
}

// Subscribe adds s to channel. Subscribing twice is a no-op.
func (h *Hub) Subscribe(s *Session, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*Session]struct{})
		h.channels[channel] = set
	}
	set[s] = struct{}{}
	s.subs[channel] = struct{}{}
}

// Unsubscribe removes s from channel.
func (h *Hub) Unsubscribe(s *Session, channel string) {
	h.mu.Lock()
	h.unsubscribeLocked(s, channel)
	h.mu.Unlock()
}

func (h *Hub) unsubscribeLocked(s *Session, channel string) {
	delete(s.subs, channel)
	set, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.channels, channel)
	}
}

// Publish queues frame once to every session subscribed to any of channels
// and returns how many sessions it reached. It never blocks on a slow
// session.
func (h *Hub) Publish(frame []byte, channels ...string) int {
	h.mu.RLock()
	targets := make(map[*Session]struct{})
	for _, ch := range channels {
		for s := range h.channels[ch] {
			targets[s] = struct{}{}
		}
	}
	h.mu.RUnlock()

	return deliver(frame, targets)
}

// Broadcast queues frame to every open session.
func (h *Hub) Broadcast(frame []byte) int {
	h.mu.RLock()
	targets := make(map[*Session]struct{}, len(h.sessions))
	for s := range h.sessions {
		targets[s] = struct{}{}
	}
	h.mu.RUnlock()

	return deliver(frame, targets)
}

func deliver(frame []byte, targets map[*Session]struct{}) int {
	if len(targets) == 0 {
		metrics.FanoutUnrouted.Inc()
		return 0
	}
	n := 0
	for s := range targets {
		if s.enqueue(frame) {
			n++
		}
	}
	metrics.FanoutDeliveries.Add(float64(n))
	return n
}

// Subscribers returns the number of sessions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// SessionCount returns the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

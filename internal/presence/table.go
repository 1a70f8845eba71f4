// Package presence tracks which users have at least one bound push session.
package presence

import (
	"sort"
	"sync"

	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
)

// Event is a presence transition for one user.
type Event struct {
	UserID string
	Online bool
}

// Listener observes presence transitions. It is called while the table lock
// is held so that transitions for a user are seen in order; it must not block
// or call back into the table.
type Listener interface {
	PresenceChanged(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) PresenceChanged(e Event) { f(e) }

// Table maps user ids to the set of sessions bound to them. A user is online
// while that set is non-empty. Entries are created on first bind and removed
// when the last session unbinds.
type Table struct {
	mu        sync.Mutex
	sessions  map[string]map[string]struct{}
	listeners []Listener
}

// NewTable creates an empty table.
func NewTable(listeners ...Listener) *Table {
	return &Table{
		sessions:  make(map[string]map[string]struct{}),
		listeners: listeners,
	}
}

// AddListener registers l for future transitions.
func (t *Table) AddListener(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// Bind records sessionID for userID. It reports whether the user went from
// offline to online. Binding a session twice is a no-op.
func (t *Table) Bind(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.sessions[userID]
	if !ok {
		set = make(map[string]struct{})
		t.sessions[userID] = set
	}
	if _, dup := set[sessionID]; dup {
		return false
	}
	set[sessionID] = struct{}{}
	if len(set) != 1 {
		return false
	}

	t.emit(Event{UserID: userID, Online: true})
	return true
}

// Unbind removes sessionID from userID. It reports whether the user went
// from online to offline. Unbinding an unknown session is a no-op.
func (t *Table) Unbind(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.sessions[userID]
	if !ok {
		return false
	}
	if _, bound := set[sessionID]; !bound {
		return false
	}
	delete(set, sessionID)
	if len(set) > 0 {
		return false
	}

	delete(t.sessions, userID)
	t.emit(Event{UserID: userID, Online: false})
	return true
}

func (t *Table) emit(e Event) {
	state := "offline"
	if e.Online {
		state = "online"
	}
	metrics.PresenceTransitions.WithLabelValues(state).Inc()
	metrics.UsersOnline.Set(float64(len(t.sessions)))

	for _, l := range t.listeners {
		l.PresenceChanged(e)
	}
}

// IsOnline reports whether userID has a bound session.
func (t *Table) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions[userID]) > 0
}

// Count returns how many sessions are bound to userID.
func (t *Table) Count(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions[userID])
}

// Online returns the ids of online users, sorted.
func (t *Table) Online() []string {
	t.mu.Lock()
	out := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		out = append(out, id)
	}
	t.mu.Unlock()

	sort.Strings(out)
	return out
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Arjunan-lab/ChattingApp/internal/ids"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// MemoryStore keeps everything in process memory. Used for local runs and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
	users    map[string]*models.User
	last     time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*models.User),
		now:   time.Now,
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AppendMessage stores msg with a timestamp no earlier than the previous one.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	defer observe("memory", "append", time.Now())

	if err := validate(msg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap("append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts

	msg.ID = ids.NewMessageID()
	msg.CreatedAt = ts
	msg.Seq = int64(len(s.messages) + 1)
	s.messages = append(s.messages, msg)

	stored := msg
	return &stored, nil
}

func (s *MemoryStore) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	return s.filter(ctx, func(m models.Message) bool { return m.Involves(a, b) })
}

func (s *MemoryStore) ListRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	return s.filter(ctx, func(m models.Message) bool { return m.RoomID == roomID })
}

// filter walks the log in insertion order, which is already chronological.
func (s *MemoryStore) filter(ctx context.Context, keep func(models.Message) bool) ([]models.Message, error) {
	defer observe("memory", "list", time.Now())

	if err := ctx.Err(); err != nil {
		return nil, wrap("list", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.messages)), nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	u := &models.User{
		ID:        ids.NewUserID(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()

	out := *u
	return &out, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

// ListUsers returns the roster sorted by name.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	s.mu.RUnlock()

	sortUsers(out)
	return out, nil
}

func sortUsers(users []models.User) {
	sort.Slice(users, func(i, j int) bool {
		ni, nj := strings.ToLower(users[i].Name), strings.ToLower(users[j].Name)
		if ni != nj {
			return ni < nj
		}
		return users[i].ID < users[j].ID
	})
}

func (s *MemoryStore) SetUserOnline(ctx context.Context, id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.Online = online
	}
	return nil
}

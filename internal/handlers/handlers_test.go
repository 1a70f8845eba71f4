package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/api/middleware"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/presence"
	"github.com/Arjunan-lab/ChattingApp/internal/realtime"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

type recordingPublisher struct {
	mu  sync.Mutex
	got []models.Message
}

func (p *recordingPublisher) Publish(msg models.Message) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, msg)
	return 0
}

func (p *recordingPublisher) published() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.got...)
}

type fixture struct {
	h     *Handler
	store *store.MemoryStore
	table *presence.Table
	pub   *recordingPublisher
	mux   *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemoryStore(),
		table: presence.NewTable(),
		pub:   &recordingPublisher{},
	}
	f.h = NewHandler(Deps{
		Store:    f.store,
		Presence: f.table,
		Hub:      realtime.NewHub(),
		Router:   f.pub,
		Logger:   zerolog.Nop(),
	})

	r := chi.NewRouter()
	r.Get("/health", f.h.Health)
	r.Get("/stats", f.h.Stats)
	r.Post("/api/messages", f.h.SendMessage)
	r.Get("/api/messages/{userId}", f.h.GetConversation)
	r.Get("/api/rooms/{roomId}/messages", f.h.GetRoomMessages)
	r.Get("/api/users", f.h.ListUsers)
	r.Get("/api/users/{id}", f.h.GetUser)
	f.mux = r
	return f
}

// do issues a request as user (empty for unauthenticated).
func (f *fixture) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if user != "" {
		r = r.WithContext(middleware.WithUserID(r.Context(), user))
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/messages", "alice", `{"to":"bob","content":"hi"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	msg := decode[models.Message](t, w)
	if msg.ID == "" || msg.From != "alice" || msg.To != "bob" || msg.CreatedAt.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}

	pub := f.pub.published()
	if len(pub) != 1 || pub[0].ID != msg.ID {
		t.Fatalf("published %+v", pub)
	}
}

func TestSendMessageIgnoresClaimedSender(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/messages", "alice", `{"from":"mallory","to":"bob","content":"hi"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[models.Message](t, w).From; got != "alice" {
		t.Fatalf("from = %q, want alice", got)
	}
}

func TestSendMessageRejects(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   string
		status int
	}{
		{"unauthenticated", "", `{"to":"bob","content":"hi"}`, http.StatusUnauthorized},
		{"bad json", "alice", `{`, http.StatusBadRequest},
		{"no recipient", "alice", `{"content":"hi"}`, http.StatusBadRequest},
		{"empty content", "alice", `{"to":"bob","content":""}`, http.StatusBadRequest},
		{"too long", "alice", `{"to":"bob","content":"` + strings.Repeat("x", models.MaxContentLength+1) + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(t, "POST", "/api/messages", tt.user, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if len(f.pub.published()) != 0 {
				t.Fatal("rejected message was published")
			}
		})
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) AppendMessage(context.Context, models.Message) (*models.Message, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) ListConversation(context.Context, string, string) ([]models.Message, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Ping(context.Context) error {
	return errors.New("disk on fire")
}

func TestStoreFailures(t *testing.T) {
	f := newFixture(t)
	f.h.store = failingStore{store.NewMemoryStore()}

	if w := f.do(t, "POST", "/api/messages", "alice", `{"to":"bob","content":"hi"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("send status = %d", w.Code)
	}
	if len(f.pub.published()) != 0 {
		t.Fatal("unstored message was published")
	}
	if w := f.do(t, "GET", "/api/messages/bob", "alice", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("history status = %d", w.Code)
	}
	w := f.do(t, "GET", "/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d", w.Code)
	}
	if decode[HealthResponse](t, w).Checks["store"].Status != "fail" {
		t.Fatalf("health body %s", w.Body.String())
	}
}

func TestGetConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, m := range []models.Message{
		{From: "alice", To: "bob", Content: "1"},
		{From: "bob", To: "alice", Content: "2"},
		{From: "alice", To: "carol", Content: "other"},
		{From: "alice", RoomID: "general", Content: "room"},
		{From: "alice", To: "bob", Content: "3"},
	} {
		if _, err := f.store.AppendMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	w := f.do(t, "GET", "/api/messages/bob", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[MessageListResponse](t, w).Messages
	var contents []string
	for _, m := range got {
		contents = append(contents, m.Content)
	}
	if strings.Join(contents, ",") != "1,2,3" {
		t.Fatalf("conversation = %v", contents)
	}

	// Same conversation from the other side.
	if n := len(decode[MessageListResponse](t, f.do(t, "GET", "/api/messages/alice", "bob", "")).Messages); n != 3 {
		t.Fatalf("bob sees %d messages", n)
	}

	if w := f.do(t, "GET", "/api/messages/bob", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", w.Code)
	}
}

func TestGetRoomMessages(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/messages", "alice", `{"roomId":"general","content":"hello room"}`)
	f.do(t, "POST", "/api/messages", "alice", `{"to":"bob","content":"private"}`)

	w := f.do(t, "GET", "/api/rooms/general/messages", "bob", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[MessageListResponse](t, w).Messages
	if len(got) != 1 || got[0].Content != "hello room" || got[0].RoomID != "general" {
		t.Fatalf("room history = %+v", got)
	}
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob, _ := f.store.CreateUser(ctx, "Bob", "bob@example.com")
	alice, _ := f.store.CreateUser(ctx, "alice", "alice@example.com")
	f.table.Bind(bob.ID, "s1")

	w := f.do(t, "GET", "/api/users", "someone", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	list := decode[UserListResponse](t, w)
	if list.Total != 2 || list.Users[0].ID != alice.ID || list.Users[1].ID != bob.ID {
		t.Fatalf("roster = %+v", list)
	}
	if list.Users[0].Online || !list.Users[1].Online {
		t.Fatalf("presence overlay wrong: %+v", list.Users)
	}

	w = f.do(t, "GET", "/api/users/"+alice.ID, "someone", "")
	if w.Code != http.StatusOK || decode[UserInfo](t, w).Name != "alice" {
		t.Fatalf("get user: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, "GET", "/api/users/nope", "someone", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing user status = %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.CreateUser(ctx, "Alice", "a@example.com")
	f.store.AppendMessage(ctx, models.Message{From: "a", To: "b", Content: "x"})
	f.table.Bind("a", "s1")

	w := f.do(t, "GET", "/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[StatsResponse](t, w)
	if got.TotalUsers != 1 || got.UsersOnline != 1 || got.TotalMessages != 1 || got.Sessions != 0 {
		t.Fatalf("stats = %+v", got)
	}
}

func TestHealthy(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[HealthResponse](t, w)
	if got.Status != "healthy" || got.Checks["store"].Status != "pass" {
		t.Fatalf("health = %+v", got)
	}
	if _, ok := got.Checks["redis"]; ok {
		t.Fatal("redis checked without being configured")
	}
}

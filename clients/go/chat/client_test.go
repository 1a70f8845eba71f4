package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/api"
	"github.com/Arjunan-lab/ChattingApp/internal/auth"
	"github.com/Arjunan-lab/ChattingApp/internal/delivery"
	"github.com/Arjunan-lab/ChattingApp/internal/presence"
	"github.com/Arjunan-lab/ChattingApp/internal/realtime"
	"github.com/Arjunan-lab/ChattingApp/internal/reconcile"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

var _ reconcile.Fetcher = (*Client)(nil)

// server runs the full HTTP surface over a memory store.
type server struct {
	*httptest.Server
	jwt   *auth.JWT
	store *store.MemoryStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := zerolog.Nop()
	jwt := auth.NewJWT("test-secret", time.Hour)
	db := store.NewMemoryStore()
	hub := realtime.NewHub()
	table := presence.NewTable()
	router := delivery.NewRouter(hub, logger)
	manager := realtime.NewManager(hub, table, jwt, router, logger, realtime.DefaultConfig())

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Logger:    logger,
		Store:     db,
		Verifier:  jwt,
		Presence:  table,
		Hub:       hub,
		Publisher: router,
		Push:      http.HandlerFunc(manager.ServeWS),
	}))
	t.Cleanup(func() {
		manager.Close()
		srv.Close()
	})
	return &server{Server: srv, jwt: jwt, store: db}
}

func (s *server) client(t *testing.T, user string) *Client {
	t.Helper()
	tok, err := s.jwt.GenerateToken(user)
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(s.URL, tok)
}

func TestSendAndConversation(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	alice, bob := s.client(t, "alice"), s.client(t, "bob")

	if _, err := alice.Send(ctx, "bob", "hi bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Send(ctx, "alice", "hi alice"); err != nil {
		t.Fatal(err)
	}

	msgs, err := alice.Conversation(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi bob" || msgs[1].Content != "hi alice" {
		t.Fatalf("conversation = %+v", msgs)
	}
	if msgs[0].CreatedAt.After(msgs[1].CreatedAt) {
		t.Fatal("conversation out of order")
	}
}

func TestRoomMessages(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	alice := s.client(t, "alice")

	if _, err := alice.SendToRoom(ctx, "general", "hello all"); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.client(t, "bob").RoomMessages(ctx, "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].RoomID != "general" {
		t.Fatalf("room = %+v", msgs)
	}
}

func TestUsers(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	u, _ := s.store.CreateUser(ctx, "Alice", "alice@example.com")

	c := s.client(t, u.ID)
	users, err := c.Users(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Name != "Alice" {
		t.Fatalf("users = %+v", users)
	}

	got, err := c.User(ctx, u.ID)
	if err != nil || got.ID != u.ID {
		t.Fatalf("user = %+v, %v", got, err)
	}

	var apiErr *APIError
	if _, err := c.User(ctx, "missing"); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestAPIErrors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := NewClient(s.URL, "not-a-token").Conversation(ctx, "bob")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}

	_, err = s.client(t, "alice").Send(ctx, "", "nobody")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	h, err := NewClient(s.URL, "").Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "healthy" {
		t.Fatalf("health = %+v", h)
	}
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").Users(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Bad Gateway" {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestCarriesToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"messages": []any{}})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL+"/", "abc").Conversation(context.Background(), "bob"); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer abc" {
		t.Fatalf("Authorization = %q", got)
	}
}

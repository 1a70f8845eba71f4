package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Arjunan-lab/ChattingApp/internal/models"
)

// testDataStore exercises behaviour every backend must share.
func testDataStore(t *testing.T, s DataStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("append assigns identity", func(t *testing.T) {
		got, err := s.AppendMessage(ctx, models.NewMessage("a1", models.Direct{To: "b1"}, "hello"))
		if err != nil {
			t.Fatal(err)
		}
		if got.ID == "" || got.CreatedAt.IsZero() || got.Seq == 0 {
			t.Fatalf("expected id, createdAt and seq, got %+v", got)
		}
	})

	t.Run("rejects missing recipient", func(t *testing.T) {
		_, err := s.AppendMessage(ctx, models.Message{From: "a1", Content: "x"})
		if !errors.Is(err, ErrValidation) || !errors.Is(err, models.ErrNoRecipient) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("rejects empty content", func(t *testing.T) {
		_, err := s.AppendMessage(ctx, models.NewMessage("a1", models.Direct{To: "b1"}, ""))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("conversation is ordered and two-way", func(t *testing.T) {
		a, b := "conv-a", "conv-b"
		bodies := []string{"one", "two", "three", "four"}
		for i, body := range bodies {
			from, to := a, b
			if i%2 == 1 {
				from, to = b, a
			}
			if _, err := s.AppendMessage(ctx, models.NewMessage(from, models.Direct{To: to}, body)); err != nil {
				t.Fatal(err)
			}
		}
		// Noise that must not show up.
		s.AppendMessage(ctx, models.NewMessage(a, models.Direct{To: "someone-else"}, "x"))
		s.AppendMessage(ctx, models.NewMessage(a, models.Room{ID: b}, "x"))

		for _, pair := range [][2]string{{a, b}, {b, a}} {
			msgs, err := s.ListConversation(ctx, pair[0], pair[1])
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != len(bodies) {
				t.Fatalf("expected %d messages, got %d", len(bodies), len(msgs))
			}
			for i, m := range msgs {
				if m.Content != bodies[i] {
					t.Fatalf("message %d = %q, want %q", i, m.Content, bodies[i])
				}
			}
			assertOrdered(t, msgs)
		}
	})

	t.Run("room history", func(t *testing.T) {
		for _, body := range []string{"r1", "r2"} {
			if _, err := s.AppendMessage(ctx, models.NewMessage("a1", models.Room{ID: "lobby"}, body)); err != nil {
				t.Fatal(err)
			}
		}
		msgs, err := s.ListRoom(ctx, "lobby")
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 2 || msgs[0].Content != "r1" || msgs[1].Content != "r2" {
			t.Fatalf("unexpected room history %+v", msgs)
		}
	})

	t.Run("unknown conversation is empty", func(t *testing.T) {
		msgs, err := s.ListConversation(ctx, "nobody", "none")
		if err != nil {
			t.Fatal(err)
		}
		if msgs == nil || len(msgs) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", msgs)
		}
	})

	t.Run("concurrent appends stay ordered", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.AppendMessage(ctx, models.NewMessage("p1", models.Direct{To: "p2"}, "burst"))
			}()
		}
		wg.Wait()
		msgs, err := s.ListConversation(ctx, "p1", "p2")
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 20 {
			t.Fatalf("expected 20 messages, got %d", len(msgs))
		}
		assertOrdered(t, msgs)
	})

	t.Run("roster", func(t *testing.T) {
		bob, err := s.CreateUser(ctx, "Bob", "bob@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.CreateUser(ctx, "alice", "alice@example.com"); err != nil {
			t.Fatal(err)
		}

		if err := s.SetUserOnline(ctx, bob.ID, true); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetUser(ctx, bob.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || !got.Online || got.Name != "Bob" {
			t.Fatalf("unexpected user %+v", got)
		}

		missing, err := s.GetUser(ctx, "does-not-exist")
		if err != nil || missing != nil {
			t.Fatalf("expected nil, nil for unknown user, got %+v, %v", missing, err)
		}

		users, err := s.ListUsers(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(users) < 2 || users[0].Name != "alice" || users[1].Name != "Bob" {
			t.Fatalf("expected roster sorted by name, got %+v", users)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountMessages(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			t.Fatal("expected messages to be counted")
		}
	})
}

func assertOrdered(t *testing.T, msgs []models.Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		if cur.CreatedAt.Before(prev.CreatedAt) {
			t.Fatalf("message %d created before its predecessor", i)
		}
		if cur.Seq <= prev.Seq {
			t.Fatalf("message %d has seq %d after %d", i, cur.Seq, prev.Seq)
		}
	}
}

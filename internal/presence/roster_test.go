package presence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

func TestRosterSyncMirrorsTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users := store.NewMemoryStore()
	alice, _ := users.CreateUser(ctx, "Alice", "")

	mirror := NewRosterSync(users, zerolog.Nop(), 8)
	go mirror.Run(ctx)

	table := NewTable(mirror)
	table.Bind(alice.ID, "s1")
	waitOnline(t, users, alice.ID, true)

	table.Unbind(alice.ID, "s1")
	waitOnline(t, users, alice.ID, false)
}

func TestRosterSyncReset(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryStore()
	bob, _ := users.CreateUser(ctx, "Bob", "")
	users.SetUserOnline(ctx, bob.ID, true)

	if err := NewRosterSync(users, zerolog.Nop(), 0).Reset(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := users.GetUser(ctx, bob.ID)
	if got.Online {
		t.Fatal("reset should mark users offline")
	}
}

func TestRosterSyncDropsWhenFull(t *testing.T) {
	r := NewRosterSync(store.NewMemoryStore(), zerolog.Nop(), 1)
	done := make(chan struct{})
	go func() {
		r.PresenceChanged(Event{UserID: "a", Online: true})
		r.PresenceChanged(Event{UserID: "a", Online: false})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PresenceChanged blocked on a full queue")
	}
}

func waitOnline(t *testing.T, users store.UserStore, id string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		u, err := users.GetUser(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if u.Online == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s online never became %v", id, want)
}

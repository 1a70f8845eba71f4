package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func TestNewSessionIDIsV7(t *testing.T) {
	id, err := uuid.Parse(NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if id.Version() != 7 {
		t.Fatalf("expected version 7, got %d", id.Version())
	}
}

func TestNewMessageIDSortable(t *testing.T) {
	a := NewMessageID()
	b := NewMessageID()
	if _, err := ulid.Parse(a); err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("ids should be unique")
	}
}

func TestNewUserIDUnique(t *testing.T) {
	if NewUserID() == NewUserID() {
		t.Fatal("ids should be unique")
	}
}

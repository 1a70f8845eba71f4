package models

import (
	"errors"
	"strings"
	"testing"
)

func TestMessageAddress(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		want    Address
		wantErr error
	}{
		{"direct", Message{To: "bob"}, Direct{To: "bob"}, nil},
		{"room wins", Message{To: "bob", RoomID: "lobby"}, Room{ID: "lobby"}, nil},
		{"neither", Message{}, nil, ErrNoRecipient},
		{"blank", Message{To: "  ", RoomID: " "}, nil, ErrNoRecipient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.msg.Address()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("address = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{"ok", NewMessage("alice", Direct{To: "bob"}, "hi"), nil},
		{"no sender", NewMessage("", Direct{To: "bob"}, "hi"), ErrMissingSender},
		{"no recipient", Message{From: "alice", Content: "hi"}, ErrNoRecipient},
		{"empty content", NewMessage("alice", Room{ID: "r"}, "   "), ErrEmptyContent},
		{"too long", NewMessage("alice", Room{ID: "r"}, strings.Repeat("x", MaxContentLength+1)), ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMessageInvolves(t *testing.T) {
	m := NewMessage("alice", Direct{To: "bob"}, "hi")
	if !m.Involves("alice", "bob") || !m.Involves("bob", "alice") {
		t.Fatal("expected message to belong to alice/bob conversation")
	}
	if m.Involves("alice", "carol") {
		t.Fatal("unexpected match for alice/carol")
	}
	room := NewMessage("alice", Room{ID: "bob"}, "hi")
	if room.Involves("alice", "bob") {
		t.Fatal("room messages are not part of direct conversations")
	}
}

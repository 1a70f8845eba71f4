package models

import (
	"errors"
	"strings"
	"time"
)

// MaxContentLength caps message content in bytes.
const MaxContentLength = 4096

var (
	ErrNoRecipient    = errors.New("missing recipient")
	ErrEmptyContent   = errors.New("missing content")
	ErrContentTooLong = errors.New("content too long")
	ErrMissingSender  = errors.New("missing sender")
)

// Message is an immutable chat message. ID, CreatedAt and Seq are assigned
// by the store on append.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	RoomID    string    `json:"roomId,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Seq       int64     `json:"seq,omitempty"`
}

// Address selects where a message is delivered. It is either Direct or Room.
type Address interface {
	isAddress()
}

// Direct addresses a single user's private channel.
type Direct struct {
	To string
}

// Room addresses a shared room channel.
type Room struct {
	ID string
}

func (Direct) isAddress() {}
func (Room) isAddress()   {}

// NewMessage builds an unsaved message for the given address.
func NewMessage(from string, addr Address, content string) Message {
	m := Message{From: from, Content: content}
	switch a := addr.(type) {
	case Direct:
		m.To = a.To
	case Room:
		m.RoomID = a.ID
	}
	return m
}

// Address resolves the addressing mode. A room id wins over a recipient.
func (m Message) Address() (Address, error) {
	if id := strings.TrimSpace(m.RoomID); id != "" {
		return Room{ID: id}, nil
	}
	if to := strings.TrimSpace(m.To); to != "" {
		return Direct{To: to}, nil
	}
	return nil, ErrNoRecipient
}

// Validate checks the fields a message must carry before it is stored or
// published.
func (m Message) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return ErrMissingSender
	}
	if _, err := m.Address(); err != nil {
		return err
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	if len(m.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// Involves reports whether the message belongs to the direct conversation
// between a and b, in either direction.
func (m Message) Involves(a, b string) bool {
	if m.RoomID != "" {
		return false
	}
	return (m.From == a && m.To == b) || (m.From == b && m.To == a)
}

// Package ids generates identifiers for messages, sessions and users.
package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a time-ordered UUID v7 for a push session.
func NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewUserID returns a random UUID for a user record.
func NewUserID() string {
	return uuid.NewString()
}

// NewMessageID returns a lexically sortable ULID.
func NewMessageID() string {
	return ulid.Make().String()
}

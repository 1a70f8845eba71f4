package models

import "encoding/json"

// Event types carried over the push transport.
const (
	EventSession     = "session"
	EventUserOnline  = "user-online"
	EventUserOffline = "user-offline"
	EventMessage     = "message"
	EventError       = "error"
	EventPong        = "pong"

	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventPing        = "ping"
)

// Envelope is the frame exchanged over a push session.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SessionPayload tells a client who the server thinks it is.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// PresencePayload accompanies user-online and user-offline events.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// RoomPayload accompanies join-room and leave-room events.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// ErrorPayload describes a rejected client event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope encodes payload into a frame of the given type.
func NewEnvelope(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

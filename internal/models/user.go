package models

import "time"

// User is a roster entry. Credentials and profile media live elsewhere.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"createdAt"`
}

package domain

import "time"

// Device is a named client installation authorized to hold a refresh
// secret. Only the SHA-256 hash of the current secret is stored; the hash
// moves forward on every rotation, which is what makes replay of an old
// secret detectable.
type Device struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	TokenHash      string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	Revoked        bool      `json:"revoked"`
	LastUsedAt     time.Time `json:"last_used_at"`
	CreatedAt      time.Time `json:"created_at"`
}

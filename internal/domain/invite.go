package domain

import "time"

// Invite is a single-use, time-limited credential authorizing creation of
// one account. The invite token itself is stored only as a SHA-256 hash.
type Invite struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	TokenHash  string     `json:"-"`
	Role       Role       `json:"role"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the invite is past its expiry at the given time.
func (i *Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Limiter throttles login attempts per (email, client IP) pair. Allow is
// consulted before credentials are checked; RecordFailure is called after a
// failed attempt and Reset after a successful login.
type Limiter interface {
	// Allow reports whether another attempt is permitted for key. When it
	// is not, the returned duration says how long until the oldest counted
	// failure ages out.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Key builds the limiter key for a login attempt. The email is normalized
// so casing and stray whitespace do not split an attacker's budget across
// multiple buckets.
func Key(email, ip string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

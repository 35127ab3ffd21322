package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(maxFailures int, window time.Duration) (*MemoryLimiter, *time.Time) {
	l := NewMemoryLimiter(maxFailures, window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiterAllowsUnderThreshold(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)
	ctx := context.Background()
	key := Key("alice@example.com", "10.0.0.1")

	for i := 0; i < 4; i++ {
		require.NoError(t, l.RecordFailure(ctx, key))
	}

	ok, _, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterBlocksAtThreshold(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)
	ctx := context.Background()
	key := Key("alice@example.com", "10.0.0.1")

	for i := 0; i < 5; i++ {
		require.NoError(t, l.RecordFailure(ctx, key))
	}

	ok, retryAfter, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 15*time.Minute, retryAfter)
}

func TestMemoryLimiterWindowSlides(t *testing.T) {
	l, now := newTestLimiter(5, 15*time.Minute)
	ctx := context.Background()
	key := Key("alice@example.com", "10.0.0.1")

	for i := 0; i < 5; i++ {
		require.NoError(t, l.RecordFailure(ctx, key))
	}

	*now = now.Add(16 * time.Minute)

	ok, _, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)
	ctx := context.Background()
	key := Key("alice@example.com", "10.0.0.1")

	for i := 0; i < 5; i++ {
		require.NoError(t, l.RecordFailure(ctx, key))
	}
	require.NoError(t, l.Reset(ctx, key))

	ok, _, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterKeysIndependent(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)
	ctx := context.Background()
	alice := Key("alice@example.com", "10.0.0.1")
	bob := Key("bob@example.com", "10.0.0.1")

	for i := 0; i < 5; i++ {
		require.NoError(t, l.RecordFailure(ctx, alice))
	}

	ok, _, err := l.Allow(ctx, bob)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyNormalizesEmail(t *testing.T) {
	assert.Equal(t, Key("alice@example.com", "10.0.0.1"), Key("  Alice@Example.COM ", "10.0.0.1"))
	assert.NotEqual(t, Key("alice@example.com", "10.0.0.1"), Key("alice@example.com", "10.0.0.2"))
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

const maxTrackedKeys = 10000

// MemoryLimiter is a sliding-window failure counter kept in process memory.
// It is the default backend for single-instance deployments; multi-instance
// deployments should use the Redis backend so all replicas share one
// failure budget.
type MemoryLimiter struct {
	mu          sync.Mutex
	failures    map[string][]time.Time
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

// NewMemoryLimiter creates a limiter allowing maxFailures failed attempts
// per key within the sliding window.
func NewMemoryLimiter(maxFailures int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		failures:    make(map[string][]time.Time),
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key)
	if len(recent) < l.maxFailures {
		return true, 0, nil
	}
	retryAfter := recent[0].Add(l.window).Sub(l.now())
	return false, retryAfter, nil
}

func (l *MemoryLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.failures) >= maxTrackedKeys {
		l.evictStale()
	}
	l.failures[key] = append(l.prune(key), l.now())
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, key)
	return nil
}

// prune drops entries older than the window and writes the trimmed slice
// back. Callers must hold the mutex.
func (l *MemoryLimiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	entries := l.failures[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = kept
	return kept
}

// evictStale removes keys whose failures have all aged out. Callers must
// hold the mutex.
func (l *MemoryLimiter) evictStale() {
	cutoff := l.now().Add(-l.window)
	for key, entries := range l.failures {
		stale := true
		for _, ts := range entries {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.failures, key)
		}
	}
}

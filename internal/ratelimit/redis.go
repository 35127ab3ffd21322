package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts login failures in Redis so multiple replicas enforce
// a shared budget. It uses a fixed window: the counter's TTL starts at the
// first failure and the whole bucket clears when it expires.
type RedisLimiter struct {
	client      *redis.Client
	maxFailures int
	window      time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, maxFailures int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
	}
}

func (l *RedisLimiter) key(key string) string {
	return "hearth:login_failures:" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	count, err := l.client.Get(ctx, l.key(key)).Int()
	if err == redis.Nil {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("read failure count: %w", err)
	}
	if count < l.maxFailures {
		return true, 0, nil
	}
	ttl, err := l.client.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("read failure ttl: %w", err)
	}
	if ttl < 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, l.key(key))
	pipe.Expire(ctx, l.key(key), l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

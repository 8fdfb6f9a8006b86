// Package ratelimit enforces the one-submission-per-window rule per client key.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "directory:submit:"

// Limiter admits one call per key per window.
type Limiter interface {
	// Allow reports whether key may proceed; when it may not, retryAfter is the remaining wait.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	// Reset frees key, so a submission that failed to persist does not lock the client out.
	Reset(ctx context.Context, key string) error
}

// RedisLimiter claims a key with SET NX and lets it expire after the window.
type RedisLimiter struct {
	rdb    redis.Cmdable
	window time.Duration
}

func NewRedisLimiter(rdb redis.Cmdable, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, time.Now().UTC().Unix(), l.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit claim: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, keyPrefix+key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, keyPrefix+key).Err()
}

// Noop admits every call. Used when Redis is disabled.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, time.Duration, error) { return true, 0, nil }
func (Noop) Reset(context.Context, string) error { return nil }

// Package ratelimit implements a Redis fixed-window limiter for the LLM-backed routes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func New(rdb redis.UniversalClient, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "ratelimit", now: time.Now}
}

// NewClient builds the Redis client used by the limiter.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})
}

// Allow increments the counter for key in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, windowStart.Unix())

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := int(incr.Val())
	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: windowStart.Add(l.window).Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

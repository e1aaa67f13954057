// Package cache holds short-lived keys: revoked session IDs, password
// reset tokens, rate limit counters and username lookups.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a string key-value store with expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr increments the counter at key and returns the new value. The
	// window starts on the first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter allows a fixed number of attempts per key per window.
type RateLimiter struct {
	store  Store
	prefix string
	limit  int64
	window time.Duration
}

func NewRateLimiter(store Store, prefix string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, prefix: prefix, limit: limit, window: window}
}

// Allow records an attempt for key and reports whether it is within the
// limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.store.Incr(ctx, "ratelimit:"+r.prefix+":"+key, r.window)
	if err != nil {
		return false, err
	}
	return count <= r.limit, nil
}

// Reset clears the attempts recorded for key.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.store.Delete(ctx, "ratelimit:"+r.prefix+":"+key)
}

// Package cache is the key/value store the reflected schema is memoised in.
//
// Three implementations exist: None (always misses), Memory (process-local
// map with expiry) and ObjectStore (a filestore bucket, shared between
// processes). All of them treat a missing or expired key as a miss, not an
// error.
//
// Usage:
//
//	c := cache.NewMemory()
//	_ = c.Set(ctx, "ReflectedDatabase", payload, 10*time.Second)
//	b, err := c.Get(ctx, "ReflectedDatabase") // nil, nil on miss
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value stored under key, or nil, nil when the key is
	// missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Clear removes every value this cache owns.
	Clear(ctx context.Context) error
}

// None is a Cache that stores nothing.
type None struct{}

var _ Cache = None{}

func (None) Get(context.Context, string) ([]byte, error)              { return nil, nil }
func (None) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (None) Clear(context.Context) error                              { return nil }

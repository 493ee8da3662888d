package cache

import (
	"context"
	"time"
)

// Cache is a best-effort byte cache. Implementations never return errors:
// failures are logged internally and surface to callers as cache misses.
type Cache interface {
	// Get returns the cached value for key, or false on miss or failure.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// DeletePattern removes all keys matching a glob pattern (e.g. "subscription:*").
	DeletePattern(ctx context.Context, pattern string)
}

// Noop is a Cache that stores nothing. Useful when caching is disabled.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

func (Noop) Delete(ctx context.Context, key string) {}

func (Noop) DeletePattern(ctx context.Context, pattern string) {}

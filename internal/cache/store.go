// Package cache provides the TTL key-value store behind the subnet cache
// and the failed-attempt counters. Any backend works as long as Incr is
// atomic and TTL expiry is honored.
package cache

import (
	"context"
	"time"
)

// Store is a TTL-expiring key-value store with an atomic counter.
type Store interface {
	// Get returns the value for key, with ok=false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes key unconditionally with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the counter at key and returns the
	// post-increment value. A missing or expired key is created at 1
	// with the given TTL; the TTL of an existing key is preserved.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

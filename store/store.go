// Package store provides counter storage backends for daily quota accounting.
package store

import (
	"context"
	"time"
)

// Store defines the interface for quota counter backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Increment atomically increments the counter for the given key and
	// returns the new count. A key that does not exist is created with
	// count 1 and the given TTL; an existing key keeps its original TTL.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Decrement atomically decrements the counter for the given key and
	// returns the new count. Used to compensate an increment that pushed a
	// counter past its limit. A missing or expired key is left absent and
	// reads as 0; the count never goes below zero.
	Decrement(ctx context.Context, key string) (int64, error)

	// Get retrieves the current count for the given key without incrementing.
	// Returns 0 if the key doesn't exist. Never creates the key.
	Get(ctx context.Context, key string) (int64, error)

	// Delete removes the counter for the given key.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

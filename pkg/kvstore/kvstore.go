// Package kvstore defines the small key-value abstraction behind the
// refresh policy counters.
package kvstore

import (
	"context"
	"time"
)

// Store is a byte-oriented key-value store. A ttl of zero means no expiry.
type Store interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
}

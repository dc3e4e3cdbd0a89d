// Package cache provides the key-value store with TTL used by the security
// services for lock mirrors, audit lists, reset tickets and counters.
package cache

import (
	"context"
	"time"
)

// Cache is a best-effort key-value store. Writes are last-write-wins; no
// operation is atomic with respect to another.
type Cache interface {
	// Get decodes the value stored at key into dest.
	// It returns false with a nil error when the key does not exist.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set stores value under key for ttl. A non-positive ttl is rejected.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

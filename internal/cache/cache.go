// Package cache provides the short-lived key-value layer used for dedup
// markers and search-result pages. The cache is never a source of truth:
// every caller must behave correctly after total cache loss.
package cache

import (
	"context"
	"time"
)

// Cache is the minimal contract shared by the Redis and in-memory backends.
type Cache interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetTTL stores value under key for the given lifetime.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
}

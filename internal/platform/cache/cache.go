// Package cache provides the read-through cache gateway used to avoid
// recomputing expensive listing queries. Cache failures are invisible to
// callers: a broken or full cache degrades to a miss, never to an error.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value cache capability consumed by services.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value for key and whether it was present and
	// unexpired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// DeleteByPattern removes every key matching the glob-style pattern
	// (path.Match syntax; '*' matches any run of characters except '/').
	DeleteByPattern(ctx context.Context, pattern string)
}

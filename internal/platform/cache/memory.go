package cache

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"
)

// entry is a cached value with its expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache. Expired entries are evicted lazily
// on read and swept opportunistically on write.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache(logger *slog.Logger) *MemoryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		logger:  logger.With(slog.String("component", "memory_cache")),
		now:     time.Now,
	}
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)

// Get returns the cached value for key and whether it was present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under key for the given TTL. Non-positive TTLs are ignored.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes a single key.
func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteByPattern removes every key matching the glob-style pattern.
// A malformed pattern deletes nothing.
func (c *MemoryCache) DeleteByPattern(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			c.logger.Warn("malformed cache invalidation pattern", "pattern", pattern)
			return
		}
		if matched {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of live entries; used by tests and stats.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweepLocked drops expired entries. Caller holds the write lock.
func (c *MemoryCache) sweepLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

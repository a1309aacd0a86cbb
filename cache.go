package strata

import (
	"strings"
	"sync"
	"time"
)

// Cache stores resolved lookups for the lifetime of a process.
// It is safe for concurrent use from multiple goroutines.
//
// Keys are namespaced by the resolver that owns them
// ("catalog/tables_for_type/6"), so one Cache can be shared by every resolver
// and invalidated coarsely with DeletePrefix or Clear.
type Cache interface {
	// Get returns the cached value and true, or false if the key is absent
	// or expired.
	Get(key string) (any, bool)

	// Set stores a value, replacing any previous one.
	Set(key string, value any)

	// Delete removes one key.
	Delete(key string)

	// DeletePrefix removes every key beginning with prefix.
	DeletePrefix(prefix string)

	// Clear removes all entries.
	Clear()
}

type cacheEntry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is the default in-memory cache implementation with optional TTL.
// It uses a sync.RWMutex for goroutine safety.
//
// The cache grows unbounded within its TTL window. The stores it fronts are
// read-only from this module's point of view, so the default is no expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
	ttl   time.Duration // 0 means no expiry
}

// CacheOption configures a MemoryCache.
type CacheOption func(*MemoryCache)

// WithTTL sets the time-to-live for cache entries.
// A TTL of 0 (default) means entries live as long as the cache.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *MemoryCache) {
		c.ttl = ttl
	}
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(opts ...CacheOption) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a cached value.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// Set stores a value.
func (c *MemoryCache) Set(key string, value any) {
	entry := cacheEntry{value: value}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[key] = entry
	c.mu.Unlock()
}

// Delete removes one key.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key beginning with prefix.
func (c *MemoryCache) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// Size returns the number of entries in the cache, expired ones included.
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Ensure MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)

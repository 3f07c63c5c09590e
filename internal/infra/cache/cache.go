// Package cache implements the key-based query cache the orchestrator
// invalidates after a successful generation. Dependent views read through
// this cache and refetch from the store after an invalidation rather than
// trusting the mutation response shape.
package cache

import (
	"path"
	"sync"
	"time"
)

type entry struct {
	value    []byte
	storedAt time.Time
}

// Cache is an in-process key/value cache with glob-pattern invalidation.
// Keys are namespaced strings like "meal-plan:user-1:week-3".
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration // zero means no expiry
}

// New creates a cache. ttl bounds entry staleness; pass 0 to disable expiry.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value under key.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: time.Now()}
	c.mu.Unlock()
}

// Invalidate removes every entry whose key matches the glob-style pattern
// ("meal-plan:user-1:*") and returns how many were removed. A malformed
// pattern matches nothing.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return removed
		}
		if ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

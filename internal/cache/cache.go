// Package cache provides a TTL-bound key/value store used to deduplicate
// repeat fetches for the same (source, token) pair.
package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache. A value returned by Get is never
// older than its TTL; concurrent writes to the same key are last-writer-wins.
type Cache[V any] struct {
	clock clock.Clock

	mu      sync.RWMutex
	entries map[string]entry[V]
}

// New creates a Cache using the wall clock.
func New[V any]() *Cache[V] {
	return NewWithClock[V](clock.New())
}

// NewWithClock creates a Cache with an injectable clock for tests.
func NewWithClock[V any](clk clock.Clock) *Cache[V] {
	return &Cache[V]{
		clock:   clk,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		// Expired entries are never returned; drop lazily.
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of unexpired entries.
func (c *Cache[V]) Len() int {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Purge removes all expired entries.
func (c *Cache[V]) Purge() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Package cache is a small in-memory TTL cache keyed by string.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL keeps the last value per key. Expired values are not evicted on read,
// so Peek can still hand them out as a stale fallback.
type TTL[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry[V]
}

func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[V]),
	}
}

// WithClock swaps the time source; tests only.
func (c *TTL[V]) WithClock(now func() time.Time) *TTL[V] {
	c.now = now
	return c
}

// Get returns the value only while it is younger than the TTL.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Peek returns the last stored value regardless of age.
func (c *TTL[V]) Peek(key string) (V, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	return e.value, e.storedAt, ok
}

func (c *TTL[V]) Set(key string, v V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: v, storedAt: c.now()}
	c.mu.Unlock()
}

func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep drops entries older than max. Returns how many were removed.
func (c *TTL[V]) Sweep(max time.Duration) int {
	cutoff := c.now().Add(-max)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if e.storedAt.Before(cutoff) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

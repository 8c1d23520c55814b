// Package cache provides the bounded detection-result cache. Eviction
// is strict insertion order, not LRU: re-reading or overwriting an
// entry never extends its lifetime. Detection results for identical
// text never change within a process, so recency carries no signal and
// first-in first-out keeps behavior fully predictable.
package cache

import "sync"

// FIFO is a fixed-capacity map with insertion-order eviction. Safe for
// concurrent use.
type FIFO[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]V
	order    []string

	hits   uint64
	misses uint64
}

// NewFIFO returns a cache bounded at capacity entries. A capacity of
// zero or less disables storage entirely; Get always misses.
func NewFIFO[V any](capacity int) *FIFO[V] {
	return &FIFO[V]{
		capacity: capacity,
		entries:  make(map[string]V),
	}
}

// Get returns the cached value for key, if present.
func (c *FIFO[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put stores value under key. Overwriting an existing key keeps its
// original position in the eviction order. When the cache is full the
// oldest entry is evicted, regardless of how recently it was read.
func (c *FIFO[V]) Put(key string, value V) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = value
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *FIFO[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops all entries and resets the counters.
func (c *FIFO[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]V)
	c.order = nil
	c.hits = 0
	c.misses = 0
}

// Stats reports hit and miss counts since the last purge.
func (c *FIFO[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

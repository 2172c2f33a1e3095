// Package lru provides a small LRU cache with per-entry TTL. It backs the
// reverse-DNS resolver, where answers are expensive to look up and must not
// be trusted forever.
package lru

import (
	"container/list"
	"sync"
	"time"
)

// entry represents a cache entry with value and expiry
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Cache implements an LRU cache with TTL support.
// This cache is simple, predictable, and maintainable.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	// LRU tracking
	items     map[K]*list.Element // key -> list element
	evictList *list.List          // LRU list (front = most recent, back = least recent)

	// Configuration
	capacity int
	ttl      time.Duration

	// Metrics
	metrics Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	// Hits is the number of cache hits
	Hits uint64

	// Misses is the number of cache misses
	Misses uint64

	// KeysAdded is the number of keys added to cache
	KeysAdded uint64

	// KeysEvicted is the number of keys evicted due to the capacity limit
	KeysEvicted uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}

// New creates a cache holding at most capacity entries, each valid for ttl.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[K, V]{
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		capacity:  capacity,
		ttl:       ttl,
	}
}

// Get retrieves a value from cache.
// Returns the value and true if found and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, exists := c.items[key]
	if !exists {
		c.metrics.Misses++
		return zero, false
	}

	ent := elem.Value.(*entry[K, V])

	// Expired entries count as misses
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.metrics.Misses++
		return zero, false
	}

	c.evictList.MoveToFront(elem)
	c.metrics.Hits++
	return ent.value, true
}

// Set stores a value in cache under the configured TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = time.Now().Add(c.ttl)
		c.evictList.MoveToFront(elem)
		return
	}

	ent := &entry[K, V]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[key] = c.evictList.PushFront(ent)
	c.metrics.KeysAdded++

	// Evict LRU items if over capacity
	for c.evictList.Len() > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.metrics.KeysEvicted++
	}
}

// Delete removes a value from cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Metrics returns a snapshot of cache statistics.
func (c *Cache[K, V]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// removeElement removes an element. Caller must hold the lock.
func (c *Cache[K, V]) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry[K, V])
	delete(c.items, ent.key)
}

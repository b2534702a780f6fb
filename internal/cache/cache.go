// Package cache provides a small bounded LRU cache with optional per-entry
// expiry. It backs the three process-wide caches in the answering pipeline
// (tool decisions, embeddings, web-search results) so none of them can grow
// without bound over the life of the process.
//
// All operations are whole-value reads and replacements — concurrent writers
// racing on the same key settle as last-writer-wins with no partial state.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is a single cached key/value pair with its optional expiry.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time // zero means no expiry
}

// Cache is a thread-safe LRU cache with a fixed capacity and an optional TTL
// applied to every entry. The zero value is not usable — construct with [New].
type Cache[V any] struct {
	// mu protects order and items.
	mu sync.Mutex
	// order tracks recency; front is most recently used.
	order *list.List
	// items maps key to its element in order.
	items map[string]*list.Element
	// capacity is the maximum number of entries before eviction.
	capacity int
	// ttl is the per-entry lifetime. Zero disables expiry.
	ttl time.Duration
	// now is the clock, overridable in tests.
	now func() time.Time
}

// New constructs a Cache holding at most capacity entries. If ttl is non-zero
// every entry expires that long after it was written. capacity must be > 0;
// values <= 0 fall back to 1024.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache[V]{
		order:    list.New(),
		items:    make(map[string]*list.Element),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the value stored under key and whether it was present and
// unexpired. A hit promotes the entry to most recently used. Expired entries
// are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Put stores value under key, replacing any existing entry wholesale and
// resetting its expiry. The least recently used entry is evicted when the
// cache is full.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[V]).key)
		}
	}
}

// Len returns the current number of entries, including any not yet swept
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Package cache provides the bounded memoization layer shared by inference
// and module management: fixed-capacity LRU maps plus a process-wide registry
// so all memoized state can be reset between analysis sessions.
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the eviction bound used when no explicit capacity is
// configured.
const DefaultCapacity = 128

// clearable lets the registry hold caches of any key/value type.
type clearable interface{ Clear() }

var registry = struct {
	mu     sync.Mutex
	caches map[clearable]struct{}
}{caches: make(map[clearable]struct{})}

func register(c clearable) {
	registry.mu.Lock()
	registry.caches[c] = struct{}{}
	registry.mu.Unlock()
}

// Unregister removes a cache from the global registry so ClearAll no longer
// touches it. Called when the owning session is torn down.
func Unregister(c interface{ Clear() }) {
	registry.mu.Lock()
	delete(registry.caches, c)
	registry.mu.Unlock()
}

// ClearAll empties every cache created through New. It resets all memoized
// analysis state in one call without leaking stale results into the next run.
func ClearAll() {
	registry.mu.Lock()
	caches := make([]clearable, 0, len(registry.caches))
	for c := range registry.caches {
		caches = append(caches, c)
	}
	registry.mu.Unlock()

	// Clear outside the registry lock: Cache.Clear takes the per-cache lock
	// and must not nest inside the registry one.
	for _, c := range caches {
		c.Clear()
	}
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// Cache is a mutex-guarded LRU map with a fixed capacity. Get and Set both
// refresh recency; inserting past capacity evicts the least recently used
// entry. Every access strictly totally orders recency, so eviction is
// deterministic.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[K]*list.Element
}

// New creates a Cache bounded to capacity entries and adds it to the global
// registry. Capacities below one fall back to DefaultCapacity.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	c := &Cache[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
	register(c)
	return c
}

// Get returns the value stored under key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).val, true
}

// Set stores val under key and marks it most recently used, evicting the
// least recently used entry if the cache is over capacity.
func (c *Cache[K, V]) Set(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).val = val
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, val: val})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[K, V]).key)
	}
}

// Contains reports whether key is present. It does not refresh recency.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry but keeps the cache registered and its capacity.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element, c.capacity)
}

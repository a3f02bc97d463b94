// Package cache provides a bounded LRU map for decoded database pages.
package cache

import (
	"container/list"
	"sync"
)

// Stats reports how an LRU has been used since it was created.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	Capacity  int
}

type item[K comparable, V any] struct {
	key K
	val V
}

// LRU is a least-recently-used cache safe for concurrent use. A capacity of
// zero or less means the cache never evicts.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front is most recently used
	stats    Stats
}

// New returns an empty LRU holding at most capacity entries.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	return &LRU[K, V]{
		capacity: max(capacity, 0),
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value for key and marks it as recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	c.order.MoveToFront(el)
	return el.Value.(*item[K, V]).val, true
}

// Add inserts or replaces key and reports whether an older entry had to be
// evicted to make room.
func (c *LRU[K, V]) Add(key K, val V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*item[K, V]).val = val
		c.order.MoveToFront(el)
		return false
	}

	c.items[key] = c.order.PushFront(&item[K, V]{key: key, val: val})
	if c.capacity == 0 || c.order.Len() <= c.capacity {
		return false
	}
	oldest := c.order.Remove(c.order.Back()).(*item[K, V])
	delete(c.items, oldest.key)
	c.stats.Evictions++
	return true
}

// Purge empties the cache. Stats counters are kept.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.items)
	c.order.Init()
}

// Stats returns a snapshot of the usage counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.order.Len()
	s.Capacity = c.capacity
	return s
}

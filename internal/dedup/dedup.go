// Package dedup provides a bounded FIFO set of recently seen
// clipboard item identifiers.
package dedup

import "sync"

const DefaultCapacity = 512

// Cache suppresses re-processing of previously seen item ids.
// Eviction order is pure insertion order: a re-seen id keeps its slot.
type Cache struct {
	mu       sync.Mutex
	capacity int
	set      map[string]struct{}
	order    []string
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		set:      make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[id]
	return ok
}

// Insert records id and reports whether it was newly added. Inserting
// a present id is a no-op returning false. When capacity is exceeded
// the oldest entry is evicted.
func (c *Cache) Insert(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.set[id]; ok {
		return false
	}
	c.set[id] = struct{}{}
	c.order = append(c.order, id)
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.set, oldest)
	}
	return true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.set)
}

// Package dedup holds the bounded recency sets the orchestrator uses to avoid
// printing a queued job twice within one process lifetime.
package dedup

// Capacities per job namespace.
const (
	KitchenCapacity = 100
	BillCapacity    = 100
	TestCapacity    = 50
)

// Cache is an insertion-ordered set of job IDs with a fixed capacity. When an
// insert would exceed the capacity the oldest inserted ID is evicted. Lookups
// never re-promote an entry, so eviction is FIFO rather than LRU.
//
// Cache is not safe for concurrent use; the polling worker is its only user.
type Cache struct {
	capacity int
	ring     []string
	head     int
	size     int
	index    map[string]struct{}
}

func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ring:     make([]string, capacity),
		index:    make(map[string]struct{}, capacity),
	}
}

func (c *Cache) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Add inserts id and reports whether it was new. Re-adding a present ID is a
// no-op and does not change its eviction order.
func (c *Cache) Add(id string) bool {
	if c.Contains(id) {
		return false
	}
	if c.size == c.capacity {
		oldest := c.ring[c.head]
		delete(c.index, oldest)
		c.ring[c.head] = id
		c.head = (c.head + 1) % c.capacity
	} else {
		c.ring[(c.head+c.size)%c.capacity] = id
		c.size++
	}
	c.index[id] = struct{}{}
	return true
}

func (c *Cache) Len() int { return c.size }

func (c *Cache) Cap() int { return c.capacity }

// Items returns the IDs oldest first.
func (c *Cache) Items() []string {
	out := make([]string, 0, c.size)
	for i := 0; i < c.size; i++ {
		out = append(out, c.ring[(c.head+i)%c.capacity])
	}
	return out
}

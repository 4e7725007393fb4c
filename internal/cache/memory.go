package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is the L1 tier: resources kept in LRU order under a byte
// budget. A capacity of zero or less means unbounded.
type MemoryCache struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List

	mu sync.Mutex

	hits      int64
	misses    int64
	evictions int64
}

type memoryEntry struct {
	res      *Resource
	lastUsed time.Time
}

// NewMemoryCache creates a memory cache holding up to capacity bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// Get returns the resource for key and marks it recently used.
func (c *MemoryCache) Get(key string) (*Resource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)
	entry.lastUsed = time.Now()
	c.hits++
	return entry.res, true
}

// peek looks key up without touching LRU order or counters.
func (c *MemoryCache) peek(key string) (*Resource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return elem.Value.(*memoryEntry).res, true
}

// Add stores res unless its key is already present, in which case the
// existing resource is returned. Least recently used entries are evicted to
// make room.
func (c *MemoryCache) Add(res *Resource) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[res.Key]; ok {
		c.eviction.MoveToFront(elem)
		return elem.Value.(*memoryEntry).res, nil
	}

	size := res.Size()
	if c.capacity > 0 && size > c.capacity {
		return res, ErrItemTooLarge
	}

	for c.capacity > 0 && c.size+size > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	elem := c.eviction.PushFront(&memoryEntry{res: res, lastUsed: time.Now()})
	c.items[res.Key] = elem
	c.size += size
	return res, nil
}

// Clear drops every entry and returns how many there were. Handles already
// given out stay valid.
func (c *MemoryCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
	return n
}

// Prune removes entries unused for longer than maxAge.
func (c *MemoryCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).lastUsed.Before(cutoff) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// Stats returns the L1 counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Capacity:  c.capacity,
		Size:      c.size,
		Items:     int64(len(c.items)),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// evictOldest must be called with the lock held.
func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.evictions++
	}
}

// removeElement must be called with the lock held.
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.res.Key)
	c.size -= entry.res.Size()
}

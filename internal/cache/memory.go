package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is the L1 tier: synthesis results held in process, evicted
// least recently used first once the byte capacity is reached.
type MemoryCache struct {
	mu sync.Mutex

	capacity int64
	ttl      time.Duration
	used     int64

	index map[string]*list.Element
	lru   *list.List // front is most recently used

	stats Stats
}

type memoryEntry struct {
	key    string
	value  []byte
	stored time.Time
}

// NewMemoryCache creates a memory cache holding up to capacity bytes.
// Entries older than ttl are treated as missing; a zero ttl keeps them.
func NewMemoryCache(capacity int64, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		lru:      list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the value for key and marks it recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if ok && c.expired(elem.Value.(*memoryEntry), time.Now()) {
		c.drop(elem)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return elem.Value.(*memoryEntry).value, true
}

// Put stores value under key.
func (c *MemoryCache) Put(key string, value []byte) error {
	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.drop(elem)
	}
	for c.used+n > c.capacity {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.drop(oldest)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}

	c.index[key] = c.lru.PushFront(&memoryEntry{key: key, value: value, stored: time.Now()})
	c.used += n
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		c.drop(elem)
	}
}

// Clear empties the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element)
	c.lru.Init()
	c.used = 0
}

// Contains reports whether key is cached without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.index[key]
	return ok && !c.expired(elem.Value.(*memoryEntry), time.Now())
}

// Size returns the bytes held.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.used
	s.ItemCount = int64(len(c.index))
	s.computeHitRate()
	return s
}

// Prune drops expired entries and returns how many went.
func (c *MemoryCache) Prune() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	// Walk from the least recently used end; an entry touched recently may
	// still be old, so the whole list is visited.
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*memoryEntry), now) {
			c.drop(elem)
			n++
		}
		elem = prev
	}
	return n
}

func (c *MemoryCache) expired(e *memoryEntry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.stored) > c.ttl
}

// drop removes elem. Callers hold mu.
func (c *MemoryCache) drop(elem *list.Element) {
	e := c.lru.Remove(elem).(*memoryEntry)
	delete(c.index, e.key)
	c.used -= int64(len(e.value))
}

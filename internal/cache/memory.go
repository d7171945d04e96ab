package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is the first level. It is bounded both by entry count and by
// total bytes; whichever limit is hit first evicts the least recently used.
type MemoryCache struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, []byte]
	capacity int64
	size     int64
	stats    Stats
}

// NewMemoryCache returns a cache holding at most entries items and capacity bytes.
func NewMemoryCache(entries int, capacity int64) (*MemoryCache, error) {
	c := &MemoryCache{capacity: capacity}
	l, err := lru.NewWithEvict[string, []byte](entries, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	c.stats.Capacity = capacity
	return c, nil
}

// onEvict runs under c.mu, from inside lru calls made by this type.
func (c *MemoryCache) onEvict(_ string, value []byte) {
	c.size -= int64(len(value))
	c.stats.Evictions++
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return v, true
}

func (c *MemoryCache) Put(key string, value []byte) error {
	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// replacement is not an eviction; onEvict still adjusts the size
	if c.lru.Remove(key) {
		c.stats.Evictions--
	}
	for c.size+n > c.capacity && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
	c.lru.Add(key, value)
	c.size += n
	return nil
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru.Remove(key) {
		c.stats.Evictions--
	}
}

func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	evictions := c.stats.Evictions
	c.lru.Purge()
	c.stats.Evictions = evictions
	c.size = 0
	return nil
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.size
	s.Items = c.lru.Len()
	return s
}

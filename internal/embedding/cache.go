package embedding

import (
	"container/list"
	"crypto/sha256"
	"sync"
)

// Cache is an LRU cache for embeddings. Query texts repeat often (the
// expander emits stable term sets), so hits are common. Keys are hashed so a
// cached multi-kilobyte passage costs 32 bytes of key, not the full text.
type Cache struct {
	capacity int
	entries  map[[sha256.Size]byte]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   [sha256.Size]byte
	value []float32
}

// NewCache creates a cache holding up to capacity embeddings.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[[sha256.Size]byte]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for text if present, refreshing its
// recency. The lookup takes the write lock because a hit reorders the LRU
// list.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := sha256.Sum256([]byte(text))
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for text, evicting the least recently used entry
// at capacity.
func (c *Cache) Set(text string, value []float32) {
	key := sha256.Sum256([]byte(text))
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

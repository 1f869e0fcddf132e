// Package cache provides LRU caching for parse results.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a generic LRU cache.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Remove(key K)
	Clear()
	Len() int
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Size       int   `json:"size"`
	MaxSize    int   `json:"max_size"`
	TotalBytes int64 `json:"total_bytes,omitempty"`
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called with a value that left the cache by eviction,
	// expiry, Remove or replacement. Clear does not call it.
	OnEvict func(key, value any)
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 100}
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
	now       func() time.Time
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	return newLRU[K, V](config)
}

func newLRU[K comparable, V any](config Config) *lruCache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
		now:       time.Now,
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := ent.Value.(*entry[K, V])
	if c.config.TTL > 0 && c.now().After(e.expiresAt) {
		c.removeElement(ent)
		c.stats.Misses++
		return zero, false
	}
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return e.value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		old := e.value
		e.value = value
		if c.config.TTL > 0 {
			e.expiresAt = c.now().Add(c.config.TTL)
		}
		if c.config.OnEvict != nil {
			c.config.OnEvict(key, old)
		}
		return
	}

	e := &entry[K, V]{key: key, value: value}
	if c.config.TTL > 0 {
		e.expiresAt = c.now().Add(c.config.TTL)
	}
	c.entries[key] = c.evictList.PushFront(e)

	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// removeOldest evicts the least recently used entry.
func (c *lruCache[K, V]) removeOldest() {
	if ent := c.evictList.Back(); ent != nil {
		c.removeElement(ent)
		c.stats.Evictions++
	}
}

func (c *lruCache[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)
	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// BoundedCache is an LRU cache that also caps the summed size of its values.
type BoundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	lru      *lruCache[K, V]
	maxBytes int64
	size     int64
	sizeFunc func(V) int64
}

// NewBoundedCache creates a cache with both entry count and byte limits.
// A value larger than maxBytes is never stored.
func NewBoundedCache[K comparable, V any](config Config, maxBytes int64, sizeFunc func(V) int64) *BoundedCache[K, V] {
	b := &BoundedCache[K, V]{maxBytes: maxBytes, sizeFunc: sizeFunc}
	user := config.OnEvict
	config.OnEvict = func(key, value any) {
		b.size -= sizeFunc(value.(V))
		if user != nil {
			user(key, value)
		}
	}
	b.lru = newLRU[K, V](config)
	return b
}

// Get retrieves a value from the cache.
func (b *BoundedCache[K, V]) Get(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Get(key)
}

// Put stores a value, evicting least recently used entries until it fits.
func (b *BoundedCache[K, V]) Put(key K, value V) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.sizeFunc(value)
	if b.maxBytes > 0 && size > b.maxBytes {
		return
	}
	b.lru.Put(key, value)
	b.size += size

	for b.maxBytes > 0 && b.size > b.maxBytes && b.lru.Len() > 1 {
		b.lru.mu.Lock()
		b.lru.removeOldest()
		b.lru.mu.Unlock()
	}
}

// Remove removes a value from the cache.
func (b *BoundedCache[K, V]) Remove(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Remove(key)
}

// Clear removes all entries from the cache.
func (b *BoundedCache[K, V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Clear()
	b.size = 0
}

// Len returns the number of entries in the cache.
func (b *BoundedCache[K, V]) Len() int {
	return b.lru.Len()
}

// Stats returns cache statistics including the byte total.
func (b *BoundedCache[K, V]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.lru.Stats()
	s.TotalBytes = b.size
	return s
}

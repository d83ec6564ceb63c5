package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache is a size-bounded LRU whose entries also expire after a TTL.
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	ttl      time.Duration
	now      func() time.Time
}

// NewTTLCache creates a cache holding at most size entries.
func NewTTLCache[V any](size int, ttl time.Duration) (*TTLCache[V], error) {
	if size <= 0 {
		size = 64
	}
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{lruCache: l, ttl: ttl, now: time.Now}, nil
}

// Set stores data under key for the cache TTL.
func (c *TTLCache[V]) Set(key string, data V) {
	c.lruCache.Add(key, cacheItem[V]{
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Get returns the cached value, or false when missing or expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		var zero V
		return zero, false
	}
	return val.data, true
}

func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.lruCache.Purge()
}

func (c *TTLCache[V]) Len() int {
	return c.lruCache.Len()
}

package cache

import (
	"container/list"
	"sync"
	"time"
)

type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache whose entries expire after a fixed time-to-live.
// When a capacity is set, the least recently used entry is evicted on overflow.
// Time is read through an injectable clock so expiry is deterministic in tests.
type TTLCache[K comparable, V any] struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
	items    map[K]*list.Element
	order    *list.List
	mu       sync.Mutex
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	capacity int
	now      func() time.Time
}

// WithCapacity bounds the number of entries. Zero or negative means unbounded.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTLCache creates a cache with the given time-to-live. Panics if ttl is not positive.
func NewTTLCache[K comparable, V any](ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	if ttl <= 0 {
		panic("cache: ttl must be positive")
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &TTLCache[K, V]{
		ttl:      ttl,
		capacity: o.capacity,
		now:      o.now,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value if present and not expired.
// Expired entries are dropped on access.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*ttlEntry[K, V])
	if !c.now().Before(entry.expiresAt) {
		c.remove(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set stores value under key, restarting its time-to-live.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	if c.capacity > 0 && c.order.Len() > c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors from load are returned as-is and nothing is cached.
// Concurrent misses for the same key may call load more than once.
func (c *TTLCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Invalidate removes key from the cache.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Clear removes all entries.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Must be called with lock held.
func (c *TTLCache[K, V]) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*ttlEntry[K, V]).key)
}

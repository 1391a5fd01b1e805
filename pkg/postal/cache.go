package postal

import "sync"

// Cache memoizes parsed rating responses within one backend instance so that
// repeated quote, delivery-estimate, and ship calls against an equal request
// reuse a single remote call. Keys are request fingerprints.
//
// The cache is write-through with no eviction and no TTL; its lifetime is the
// backend instance that owns it. Concurrent callers racing on the same
// uncached key are not deduplicated: the design accepts an occasional
// redundant remote call rather than holding a lock across network I/O.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewCache creates an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// Get returns the cached value for key.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores a value under key, overwriting any previous entry.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// GetOrFill returns the cached value for key, invoking fill on a miss and
// storing its result. The lock is not held during fill.
func (c *Cache[T]) GetOrFill(key string, fill func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fill()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Put(key, v)
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

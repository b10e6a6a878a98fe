// Package cache provides a bounded in-memory cache with TTL, used for
// institution metadata shared across requests.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a thread-safe, size-bounded cache whose entries expire after a TTL.
// It implements port.Cache.
type LRU[T any] struct {
	lru *expirable.LRU[string, T]
}

// New creates a cache holding at most size entries, each living for ttl.
// A non-positive size means unbounded.
func New[T any](size int, ttl time.Duration) *LRU[T] {
	if size < 0 {
		size = 0
	}
	return &LRU[T]{lru: expirable.NewLRU[string, T](size, nil, ttl)}
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *LRU[T]) Get(key string) (T, bool) {
	return c.lru.Get(key)
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRU[T]) Set(key string, value T) {
	c.lru.Add(key, value)
}

// Delete removes a value from the cache.
func (c *LRU[T]) Delete(key string) {
	c.lru.Remove(key)
}

// Len returns the number of live entries.
func (c *LRU[T]) Len() int {
	return c.lru.Len()
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"github.com/luxfi/geth/common/lru"
)

// LRUCache is a bounded cache for values that never expire, such as key
// material that is only ever overwritten.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		cache: lru.NewCache[K, V](size),
	}
}

// Get returns the cached value for key, otherwise fetches it with fetchFunc
// and caches the result. If [invalidate] is true, the value is cleared from
// the cache prior to fetching. Fetch errors are returned and not cached.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.cache.Remove(key)
	} else if value, found := c.cache.Get(key); found {
		return value, nil
	}

	newValue, err := fetchFunc(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.cache.Add(key, newValue)
	return newValue, nil
}

// Peek returns the cached value for key without fetching.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	return c.cache.Get(key)
}

// Put overwrites the value for key.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.cache.Add(key, value)
}

func (c *LRUCache[K, V]) Remove(key K) {
	c.cache.Remove(key)
}

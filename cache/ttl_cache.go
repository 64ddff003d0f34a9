// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type TTLCacheItem[V any] struct {
	value     V
	timestamp time.Time
}

// TTLCache keeps values for a fixed time-to-live and deduplicates concurrent
// fetches of the same key. Failed fetches are never cached.
type TTLCache[K comparable, V any] struct {
	data    map[K]TTLCacheItem[V]
	ttl     time.Duration
	now     func() time.Time
	lock    sync.RWMutex
	sfGroup singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data: make(map[K]TTLCacheItem[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the cached value for key while it is fresh, otherwise fetches
// it with fetchFunc. If [invalidate] is true the entry is dropped before
// fetching so no other reader observes the stale value.
// The shared fetch runs detached from ctx; a caller whose ctx ends first
// returns ctx.Err() while the fetch completes for the others.
func (c *TTLCache[K, V]) Get(
	ctx context.Context,
	key K,
	fetchFunc func(context.Context, K) (V, error),
	invalidate bool,
) (V, error) {
	if invalidate {
		c.Invalidate(key)
	} else if v, ok := c.Peek(key); ok {
		return v, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.sfGroup.DoChan(keyToString(key), func() (interface{}, error) {
		newValue, err := fetchFunc(fetchCtx, key)
		if err != nil {
			return nil, err
		}

		c.lock.Lock()
		c.data[key] = TTLCacheItem[V]{
			value:     newValue,
			timestamp: c.now(),
		}
		c.lock.Unlock()
		return newValue, nil
	})

	select {
	case <-ctx.Done():
		return *new(V), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return *new(V), res.Err
		}
		return res.Val.(V), nil
	}
}

// Peek returns the value for key if it is present and fresh.
func (c *TTLCache[K, V]) Peek(key K) (V, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	item, exists := c.data[key]
	if !exists || c.now().Sub(item.timestamp) >= c.ttl {
		return *new(V), false
	}
	return item.value, true
}

func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	delete(c.data, key)
	c.lock.Unlock()
}

// keyToString is defined to allow for both fmt.Stringer and primitive string types.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}

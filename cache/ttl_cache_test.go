// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheSingleKey(t *testing.T) {
	tests := []struct {
		name          string
		advance       time.Duration
		invalidate    bool
		expectedCount int
	}{
		{
			name:          "fresh cache, fetch",
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			expectedCount: 1,
		},
		{
			name:          "invalidate=true, fetch",
			invalidate:    true,
			expectedCount: 2,
		},
		{
			name:          "ttl expired, fetch",
			advance:       2 * time.Second,
			expectedCount: 3,
		},
	}
	now := time.Unix(1_700_000_000, 0)
	cache := NewTTLCache[string, int](time.Second)
	cache.now = func() time.Time { return now }

	fetchCount := 0
	fetchFunc := func(context.Context, string) (int, error) {
		fetchCount++
		return 42, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			now = now.Add(tt.advance)
			val, err := cache.Get(context.Background(), "test", fetchFunc, tt.invalidate)
			require.NoError(err)
			require.Equal(42, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestTTLCacheErrorsNotCached(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, string](time.Minute)
	calls := 0
	fetch := func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("unreachable")
		}
		return "hardhat/2.22.0", nil
	}

	_, err := cache.Get(context.Background(), "http://localhost:8545", fetch, false)
	require.ErrorContains(err, "unreachable")

	v, err := cache.Get(context.Background(), "http://localhost:8545", fetch, false)
	require.NoError(err)
	require.Equal("hardhat/2.22.0", v)
	require.Equal(2, calls)
}

func TestTTLCacheSingleFlight(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context, string) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Get(context.Background(), "k", fetch, false)
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	require.Eventually(func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(int32(1), calls.Load())
	for _, v := range results {
		require.Equal(7, v)
	}
}

func TestTTLCacheCallerContext(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	release := make(chan struct{})
	fetch := func(context.Context, string) (int, error) {
		<-release
		return 1, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Get(ctx, "k", fetch, false)
	require.ErrorIs(err, context.Canceled)

	close(release)
	require.Eventually(func() bool {
		_, ok := cache.Peek("k")
		return ok
	}, time.Second, time.Millisecond)
}

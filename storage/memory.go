// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"sync"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage is a session-scoped Storage.
type MemoryStorage struct {
	lock  sync.RWMutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(_ context.Context, key string, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.items, key)
	return nil
}

// Len returns the number of stored items.
func (m *MemoryStorage) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.items)
}

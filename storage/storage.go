// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage provides the string key/value stores that back the public
// key cache and the decryption signature cache.
package storage

import "context"

// Storage is a string key/value store with last-write-wins semantics.
// A missing key is reported with ok == false and a nil error.
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key string, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/fhesurvey/cache"
	"github.com/luxfi/fhesurvey/storage"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/log"
)

const (
	publicKeyPrefix = "fhevm.publicKey."
	keyCacheSize    = 16
)

// KeyMaterial is the public key and parameters served by the backend for an
// ACL contract.
type KeyMaterial struct {
	ContractAddress common.Address `json:"contractAddress"`
	PublicKey       hexutil.Bytes  `json:"publicKey"`
	PublicParams    hexutil.Bytes  `json:"publicParams"`
}

// PublicKeyStorage caches key material per ACL address so instance creation
// can skip refetching it. Entries never expire and every write overwrites.
type PublicKeyStorage struct {
	logger log.Logger
	store  storage.Storage
	cache  *cache.LRUCache[common.Address, KeyMaterial]
}

func NewPublicKeyStorage(logger log.Logger, store storage.Storage) *PublicKeyStorage {
	return &PublicKeyStorage{
		logger: logger,
		store:  store,
		cache:  cache.NewLRUCache[common.Address, KeyMaterial](keyCacheSize),
	}
}

// Get returns the cached key material for addr. Missing or unreadable
// entries are reported as absent.
func (s *PublicKeyStorage) Get(ctx context.Context, addr common.Address) (KeyMaterial, bool) {
	km, err := s.cache.Get(addr, func(addr common.Address) (KeyMaterial, error) {
		return s.load(ctx, addr)
	}, false)
	if err != nil {
		if !errors.Is(err, errKeyNotFound) {
			s.logger.Warn("Failed to read cached public key",
				"aclAddress", addr,
				log.Err(err),
			)
		}
		return KeyMaterial{}, false
	}
	return km, true
}

func (s *PublicKeyStorage) Set(ctx context.Context, addr common.Address, publicKey, publicParams []byte) error {
	km := KeyMaterial{
		ContractAddress: addr,
		PublicKey:       publicKey,
		PublicParams:    publicParams,
	}
	raw, err := json.Marshal(km)
	if err != nil {
		return fmt.Errorf("failed to encode key material: %w", err)
	}
	if err := s.store.SetItem(ctx, storageKey(addr), string(raw)); err != nil {
		return fmt.Errorf("failed to store key material: %w", err)
	}
	s.cache.Put(addr, km)
	return nil
}

var errKeyNotFound = errors.New("public key not found")

func (s *PublicKeyStorage) load(ctx context.Context, addr common.Address) (KeyMaterial, error) {
	raw, ok, err := s.store.GetItem(ctx, storageKey(addr))
	if err != nil {
		return KeyMaterial{}, err
	}
	if !ok {
		return KeyMaterial{}, errKeyNotFound
	}
	var km KeyMaterial
	if err := json.Unmarshal([]byte(raw), &km); err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to decode key material: %w", err)
	}
	return km, nil
}

func storageKey(addr common.Address) string {
	return publicKeyPrefix + strings.ToLower(addr.Hex())
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package mock

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/storage"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	crypto "github.com/luxfi/crypto"
)

const (
	// euint32 type tag carried in byte 30 of a handle.
	typeEuint32   byte = 4
	handleVersion byte = 0

	signatureLen = 65
	mockKeyLen   = 32

	storePrefix           = "fhevm.mock."
	inputKeyStoreKey      = storePrefix + "inputKey"
	publicKeyStoreKey     = storePrefix + "publicKey"
	publicParamsStoreKey  = storePrefix + "publicParams"
	nonceStoreKey         = storePrefix + "nonce"
	ciphertextStorePrefix = storePrefix + "ct."
)

var (
	ErrInvalidProof = errors.New("invalid input proof")
	errNoValues     = errors.New("no values to encrypt")
)

type ciphertext struct {
	Value    uint32         `json:"value"`
	Contract common.Address `json:"contract"`
	User     common.Address `json:"user"`
	ChainID  uint64         `json:"chainId"`
}

// Registry stands in for the coprocessor of a development node: it keeps the
// clear value behind every handle it issued. Instances built over the same
// Registry share handles across rebuilds. A Registry opened over a store
// shares its input key and handles with every later Registry opened over
// that store.
type Registry struct {
	store storage.Storage

	lock         sync.RWMutex
	inputKey     *ecdsa.PrivateKey
	publicKey    []byte
	publicParams []byte
	nonce        uint64
	entries      map[common.Hash]ciphertext
}

// NewRegistry returns a registry living in memory only.
func NewRegistry() (*Registry, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate input verifier key: %w", err)
	}
	return &Registry{
		inputKey:     key,
		publicKey:    luxcrypto.RandomBytes(mockKeyLen),
		publicParams: luxcrypto.RandomBytes(mockKeyLen),
		entries:      make(map[common.Hash]ciphertext),
	}, nil
}

// OpenRegistry loads the registry persisted in store, creating it on first
// use.
func OpenRegistry(ctx context.Context, store storage.Storage) (*Registry, error) {
	r := &Registry{
		store:   store,
		entries: make(map[common.Hash]ciphertext),
	}

	keyHex, ok, err := store.GetItem(ctx, inputKeyStoreKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read input verifier key: %w", err)
	}
	if !ok {
		return r, r.initialize(ctx)
	}
	keyBytes, err := hexutil.Decode(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid stored input verifier key: %w", err)
	}
	if r.inputKey, err = crypto.ToECDSA(keyBytes); err != nil {
		return nil, fmt.Errorf("invalid stored input verifier key: %w", err)
	}
	if r.publicKey, err = r.loadBytes(ctx, publicKeyStoreKey); err != nil {
		return nil, err
	}
	if r.publicParams, err = r.loadBytes(ctx, publicParamsStoreKey); err != nil {
		return nil, err
	}
	if r.nonce, err = r.loadNonce(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initialize(ctx context.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate input verifier key: %w", err)
	}
	r.inputKey = key
	r.publicKey = luxcrypto.RandomBytes(mockKeyLen)
	r.publicParams = luxcrypto.RandomBytes(mockKeyLen)

	// The key goes last so a partial write is redone on the next open.
	for _, item := range []struct {
		key   string
		value []byte
	}{
		{publicKeyStoreKey, r.publicKey},
		{publicParamsStoreKey, r.publicParams},
		{inputKeyStoreKey, crypto.FromECDSA(key)},
	} {
		if err := r.store.SetItem(ctx, item.key, hexutil.Encode(item.value)); err != nil {
			return fmt.Errorf("failed to persist %s: %w", item.key, err)
		}
	}
	return nil
}

func (r *Registry) loadBytes(ctx context.Context, key string) ([]byte, error) {
	v, ok, err := r.store.GetItem(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func (r *Registry) loadNonce(ctx context.Context) (uint64, error) {
	v, ok, err := r.store.GetItem(ctx, nonceStoreKey)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// InputSigner is the address that signs input proofs.
func (r *Registry) InputSigner() common.Address {
	return common.PubkeyToAddress(r.inputKey.PublicKey)
}

// Len returns the number of issued handles.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.entries)
}

func (r *Registry) encrypt(ctx context.Context, contract, user common.Address, chainID uint64, values []uint32) (*fhevm.Encrypted, error) {
	if len(values) == 0 {
		return nil, errNoValues
	}
	if len(values) > 255 {
		return nil, fmt.Errorf("too many values: %d", len(values))
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.store != nil {
		// Another process may have issued handles since this one loaded.
		stored, err := r.loadNonce(ctx)
		if err != nil {
			return nil, err
		}
		r.nonce = max(r.nonce, stored)
	}
	r.nonce++
	handles := make([]common.Hash, len(values))
	cts := make([]ciphertext, len(values))
	for i, v := range values {
		handles[i] = newHandle(r.nonce, contract, user, chainID, i)
		cts[i] = ciphertext{
			Value:    v,
			Contract: contract,
			User:     user,
			ChainID:  chainID,
		}
	}
	if err := r.persist(ctx, handles, cts); err != nil {
		return nil, err
	}
	for i, h := range handles {
		r.entries[h] = cts[i]
	}

	sig, err := crypto.Sign(proofDigest(handles, contract, user, chainID), r.inputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign input proof: %w", err)
	}
	proof := make([]byte, 0, 1+len(handles)*common.HashLength+signatureLen)
	proof = append(proof, byte(len(handles)))
	for _, h := range handles {
		proof = append(proof, h.Bytes()...)
	}
	proof = append(proof, sig...)
	return &fhevm.Encrypted{Handles: handles, InputProof: proof}, nil
}

// VerifyInputProof checks that proof was issued by this registry for handle
// bound to contract, user and chainID.
func (r *Registry) VerifyInputProof(
	contract common.Address,
	user common.Address,
	chainID uint64,
	handle common.Hash,
	proof []byte,
) error {
	if len(proof) < 1 {
		return ErrInvalidProof
	}
	n := int(proof[0])
	if n == 0 || len(proof) != 1+n*common.HashLength+signatureLen {
		return ErrInvalidProof
	}
	handles := make([]common.Hash, n)
	found := false
	for i := range handles {
		handles[i] = common.BytesToHash(proof[1+i*common.HashLength : 1+(i+1)*common.HashLength])
		if handles[i] == handle {
			found = true
		}
	}
	if !found {
		return ErrInvalidProof
	}
	sig := proof[1+n*common.HashLength:]
	pub, err := crypto.SigToPub(proofDigest(handles, contract, user, chainID), sig)
	if err != nil || common.PubkeyToAddress(*pub) != r.InputSigner() {
		return ErrInvalidProof
	}
	return nil
}

func (r *Registry) persist(ctx context.Context, handles []common.Hash, cts []ciphertext) error {
	if r.store == nil {
		return nil
	}
	for i, h := range handles {
		raw, err := json.Marshal(cts[i])
		if err != nil {
			return err
		}
		if err := r.store.SetItem(ctx, ciphertextStorePrefix+h.Hex(), string(raw)); err != nil {
			return fmt.Errorf("failed to persist ciphertext %s: %w", h, err)
		}
	}
	return r.store.SetItem(ctx, nonceStoreKey, strconv.FormatUint(r.nonce, 10))
}

// lookup returns the ciphertext behind handle, reading through to the store
// for handles issued by another Registry over it.
func (r *Registry) lookup(ctx context.Context, handle common.Hash) (ciphertext, bool, error) {
	r.lock.RLock()
	ct, ok := r.entries[handle]
	r.lock.RUnlock()
	if ok || r.store == nil {
		return ct, ok, nil
	}

	raw, ok, err := r.store.GetItem(ctx, ciphertextStorePrefix+handle.Hex())
	if err != nil || !ok {
		return ciphertext{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &ct); err != nil {
		return ciphertext{}, false, fmt.Errorf("invalid stored ciphertext %s: %w", handle, err)
	}

	r.lock.Lock()
	r.entries[handle] = ct
	r.lock.Unlock()
	return ct, true, nil
}

func newHandle(nonce uint64, contract, user common.Address, chainID uint64, index int) common.Hash {
	var buf [8 + 8 + 1]byte
	binary.BigEndian.PutUint64(buf[0:8], nonce)
	binary.BigEndian.PutUint64(buf[8:16], chainID)
	buf[16] = byte(index)
	h := common.BytesToHash(luxcrypto.Keccak256(buf[:], contract.Bytes(), user.Bytes()))
	h[30] = typeEuint32
	h[31] = handleVersion
	return h
}

func proofDigest(handles []common.Hash, contract, user common.Address, chainID uint64) []byte {
	data := make([][]byte, 0, len(handles)+3)
	for _, h := range handles {
		data = append(data, h.Bytes())
	}
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], chainID)
	data = append(data, contract.Bytes(), user.Bytes(), id[:])
	return luxcrypto.Keccak256(data...)
}

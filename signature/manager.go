// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package signature manages the user-signed authorizations required to
// decrypt values through the backend.
package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/storage"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

const (
	DefaultDurationDays = 365

	storagePrefix = "fhevm.decryptionSignature."
)

// ErrSignatureUnavailable matches every error returned when a signature
// could not be obtained. Callers show a message instead of failing hard.
var ErrSignatureUnavailable = &fhesurvey.Error{
	Code:    fhesurvey.CodeSignatureUnavailable,
	Message: "decryption signature unavailable",
}

// Manager returns cached decryption signatures, asking the signer for a new
// one only when none is valid for the requested contracts.
type Manager struct {
	logger       log.Logger
	store        storage.Storage
	durationDays uint64
	now          func() time.Time
}

func NewManager(logger log.Logger, store storage.Storage, durationDays uint64) *Manager {
	if durationDays == 0 {
		durationDays = DefaultDurationDays
	}
	return &Manager{
		logger:       logger,
		store:        store,
		durationDays: durationDays,
		now:          time.Now,
	}
}

// LoadOrSign returns an unexpired signature covering exactly contracts for
// signer, creating and persisting one if needed.
func (m *Manager) LoadOrSign(
	ctx context.Context,
	inst fhevm.Instance,
	contracts []common.Address,
	signer Signer,
) (*DecryptionSignature, error) {
	if len(contracts) == 0 {
		return nil, fhesurvey.Errorf(fhesurvey.CodeSignatureUnavailable, "no contract addresses")
	}
	user := signer.Address()
	sorted := sortedContracts(contracts)
	key := StorageKey(user, sorted)

	if cached, ok := m.load(ctx, key); ok {
		if cached.UserAddress == user && cached.Covers(sorted) && cached.IsValid(m.now()) {
			m.logger.Debug("Using cached decryption signature",
				"user", user,
				"expiresAt", cached.ExpiresAt(),
			)
			return cached, nil
		}
	}

	sig, err := m.sign(ctx, inst, sorted, signer)
	if err != nil {
		if cerr := fhesurvey.CheckCancelled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fhesurvey.NewError(fhesurvey.CodeSignatureUnavailable, ErrSignatureUnavailable.Message, err)
	}

	if err := m.save(ctx, key, sig); err != nil {
		m.logger.Warn("Failed to store decryption signature",
			"user", user,
			log.Err(err),
		)
	}
	return sig, nil
}

func (m *Manager) sign(
	ctx context.Context,
	inst fhevm.Instance,
	contracts []common.Address,
	signer Signer,
) (*DecryptionSignature, error) {
	kp, err := inst.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	start := uint64(m.now().Unix())
	td, err := inst.CreateEIP712(kp.PublicKey, contracts, start, m.durationDays)
	if err != nil {
		return nil, fmt.Errorf("failed to build typed data: %w", err)
	}
	sig, err := signer.SignTypedData(ctx, td)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	m.logger.Info("Created decryption signature",
		"user", signer.Address(),
		"contracts", len(contracts),
		"durationDays", m.durationDays,
	)
	return &DecryptionSignature{
		PrivateKey:        kp.PrivateKey,
		PublicKey:         kp.PublicKey,
		Signature:         sig,
		ContractAddresses: contracts,
		UserAddress:       signer.Address(),
		StartTimestamp:    start,
		DurationDays:      m.durationDays,
	}, nil
}

// load treats unreadable entries as misses.
func (m *Manager) load(ctx context.Context, key string) (*DecryptionSignature, bool) {
	raw, ok, err := m.store.GetItem(ctx, key)
	if err != nil {
		m.logger.Warn("Failed to read decryption signature", log.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var sig DecryptionSignature
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		m.logger.Warn("Discarding malformed decryption signature", log.Err(err))
		return nil, false
	}
	return &sig, true
}

func (m *Manager) save(ctx context.Context, key string, sig *DecryptionSignature) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return m.store.SetItem(ctx, key, string(raw))
}

// StorageKey identifies the signature of user for a sorted contract set.
func StorageKey(user common.Address, sorted []common.Address) string {
	data := make([][]byte, 0, len(sorted)+1)
	data = append(data, user.Bytes())
	for _, c := range sorted {
		data = append(data, c.Bytes())
	}
	id := ids.ID(luxcrypto.Keccak256Hash(data...))
	return storagePrefix + id.String()
}

// sortedContracts returns a sorted copy of contracts without duplicates.
func sortedContracts(contracts []common.Address) []common.Address {
	sorted := slices.Clone(contracts)
	slices.SortFunc(sorted, func(a, b common.Address) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
	return slices.Compact(sorted)
}

// IsUnavailable reports whether err means no signature could be obtained.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrSignatureUnavailable)
}

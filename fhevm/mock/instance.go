// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package mock provides an in-process encryption backend for local
// development chains.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/geth/common"
	crypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"
)

const secondsPerDay = 86400

var _ fhevm.Instance = (*Instance)(nil)

type Instance struct {
	chainID  uint64
	metadata fhevm.RelayerMetadata
	registry *Registry
	now      func() time.Time
}

func NewInstance(params fhevm.MockParams, registry *Registry) *Instance {
	return &Instance{
		chainID:  params.ChainID,
		metadata: params.Metadata,
		registry: registry,
		now:      time.Now,
	}
}

// Builder returns a fhevm.MockBuilder creating instances over registry.
func Builder(registry *Registry) fhevm.MockBuilder {
	return func(ctx context.Context, params fhevm.MockParams) (fhevm.Instance, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewInstance(params, registry), nil
	}
}

func (i *Instance) CreateEncryptedInput(contract, user common.Address) fhevm.EncryptedInput {
	return &encryptedInput{
		instance: i,
		contract: contract,
		user:     user,
	}
}

func (i *Instance) GenerateKeypair() (fhevm.Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fhevm.Keypair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return fhevm.Keypair{
		PublicKey:  crypto.FromECDSAPub(&key.PublicKey),
		PrivateKey: crypto.FromECDSA(key),
	}, nil
}

func (i *Instance) CreateEIP712(
	publicKey []byte,
	contracts []common.Address,
	startTimestamp uint64,
	durationDays uint64,
) (apitypes.TypedData, error) {
	if len(contracts) == 0 {
		return apitypes.TypedData{}, fmt.Errorf("%w: no contract addresses", fhevm.ErrUnauthorized)
	}
	return fhevm.NewUserDecryptTypedData(
		i.chainID,
		i.metadata.KMSVerifierAddress,
		publicKey,
		contracts,
		startTimestamp,
		durationDays,
	), nil
}

// UserDecrypt checks the request signature, validity window and ownership of
// every handle, then returns the clear values.
func (i *Instance) UserDecrypt(
	ctx context.Context,
	pairs []fhevm.HandleContractPair,
	req fhevm.UserDecryptRequest,
) (map[common.Hash]*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := i.verifyRequest(req); err != nil {
		return nil, err
	}

	results := make(map[common.Hash]*uint256.Int, len(pairs))
	for _, p := range pairs {
		if !slices.Contains(req.ContractAddresses, p.ContractAddress) {
			return nil, fmt.Errorf("%w: contract %s not in signed set", fhevm.ErrUnauthorized, p.ContractAddress)
		}
		ct, ok, err := i.registry.lookup(ctx, p.Handle)
		if err != nil {
			return nil, err
		}
		if !ok || ct.ChainID != i.chainID {
			return nil, fmt.Errorf("%w: %s", fhevm.ErrInvalidCiphertext, p.Handle)
		}
		if ct.Contract != p.ContractAddress || ct.User != req.UserAddress {
			return nil, fmt.Errorf("%w: %s is not decryptable by %s", fhevm.ErrUnauthorized, p.Handle, req.UserAddress)
		}
		results[p.Handle] = uint256.NewInt(uint64(ct.Value))
	}
	return results, nil
}

func (i *Instance) verifyRequest(req fhevm.UserDecryptRequest) error {
	now := uint64(i.now().Unix())
	if now >= req.StartTimestamp+req.DurationDays*secondsPerDay {
		return fmt.Errorf("%w: signature expired", fhevm.ErrUnauthorized)
	}

	key, err := crypto.ToECDSA(req.PrivateKey)
	if err != nil || !bytes.Equal(crypto.FromECDSAPub(&key.PublicKey), req.PublicKey) {
		return fmt.Errorf("%w: keypair mismatch", fhevm.ErrUnauthorized)
	}

	td, err := i.CreateEIP712(req.PublicKey, req.ContractAddresses, req.StartTimestamp, req.DurationDays)
	if err != nil {
		return err
	}
	digest, err := fhevm.TypedDataHash(td)
	if err != nil {
		return err
	}
	if len(req.Signature) != signatureLen {
		return fmt.Errorf("%w: malformed signature", fhevm.ErrUnauthorized)
	}
	sig := bytes.Clone(req.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil || common.PubkeyToAddress(*pub) != req.UserAddress {
		return fmt.Errorf("%w: signature does not match user", fhevm.ErrUnauthorized)
	}
	return nil
}

func (i *Instance) PublicKey() []byte {
	return bytes.Clone(i.registry.publicKey)
}

func (i *Instance) PublicParams(int) []byte {
	return bytes.Clone(i.registry.publicParams)
}

type encryptedInput struct {
	instance *Instance
	contract common.Address
	user     common.Address
	values   []uint32
}

func (e *encryptedInput) Add32(v uint32) fhevm.EncryptedInput {
	e.values = append(e.values, v)
	return e
}

func (e *encryptedInput) Encrypt(ctx context.Context) (*fhevm.Encrypted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.instance.registry.encrypt(ctx, e.contract, e.user, e.instance.chainID, e.values)
}

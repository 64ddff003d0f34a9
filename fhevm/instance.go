// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhevm builds encryption sessions ("instances") against either the
// production relayer backend or a local FHE-enabled development node.
package fhevm

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/signer/core/apitypes"
)

// Instance is an encryption session bound to one chain and backend. It owns
// the public key material and exposes input encryption and user decryption.
type Instance interface {
	// CreateEncryptedInput starts an input bound to contract and user.
	CreateEncryptedInput(contract, user common.Address) EncryptedInput

	// GenerateKeypair returns a fresh reencryption keypair.
	GenerateKeypair() (Keypair, error)

	// CreateEIP712 returns the typed data a user signs to authorize
	// decryption for contracts during the validity window.
	CreateEIP712(
		publicKey []byte,
		contracts []common.Address,
		startTimestamp uint64,
		durationDays uint64,
	) (apitypes.TypedData, error)

	// UserDecrypt decrypts all handles in a single request.
	UserDecrypt(
		ctx context.Context,
		pairs []HandleContractPair,
		req UserDecryptRequest,
	) (map[common.Hash]*uint256.Int, error)

	PublicKey() []byte
	PublicParams(bits int) []byte
}

// EncryptedInput accumulates clear values and encrypts them together.
type EncryptedInput interface {
	Add32(v uint32) EncryptedInput
	Encrypt(ctx context.Context) (*Encrypted, error)
}

// Encrypted holds one handle per added value and the proof binding them to
// the contract and user.
type Encrypted struct {
	Handles    []common.Hash
	InputProof []byte
}

type Keypair struct {
	PublicKey  []byte
	PrivateKey []byte
}

type HandleContractPair struct {
	Handle          common.Hash
	ContractAddress common.Address
}

// UserDecryptRequest carries the fields of a decryption signature.
type UserDecryptRequest struct {
	PrivateKey        []byte
	PublicKey         []byte
	Signature         []byte
	ContractAddresses []common.Address
	UserAddress       common.Address
	StartTimestamp    uint64
	DurationDays      uint64
}

// NetworkConfig is the backend's default network configuration. Addresses
// are kept as received so they can be validated before use.
type NetworkConfig struct {
	ACLContractAddress           string
	KMSContractAddress           string
	InputVerifierContractAddress string
	ChainID                      uint64
	GatewayChainID               uint64
	RelayerURL                   string
}

// InstanceConfig is passed to the backend's instance constructor. PublicKey
// and PublicParams are empty when nothing was cached.
type InstanceConfig struct {
	NetworkConfig
	Network      chain.Target
	PublicKey    []byte
	PublicParams []byte
}

// RelayerMetadata identifies the FHE contracts of a local development node.
type RelayerMetadata struct {
	ACLAddress           common.Address
	InputVerifierAddress common.Address
	KMSVerifierAddress   common.Address
}

// MockParams are used to build an instance against a development node.
type MockParams struct {
	RPCURL   string
	ChainID  uint64
	Metadata RelayerMetadata
}

var (
	// ErrInvalidCiphertext is returned when a handle is unknown or malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrUnauthorized is returned when a decryption request is not allowed.
	ErrUnauthorized = errors.New("decryption not authorized")
)

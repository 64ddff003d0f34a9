// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package signature

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	crypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"
)

// ErrRefused is returned by signers when the user declines a request.
var ErrRefused = errors.New("signature request refused")

// Signer produces EIP-712 signatures on behalf of a user.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

var _ Signer = (*LocalSigner)(nil)

// LocalSigner signs with a private key held in process.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: common.PubkeyToAddress(key.PublicKey),
	}
}

// NewLocalSignerFromHex parses a hex encoded secp256k1 private key.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTypedData returns a 65 byte signature with V in {27, 28}.
func (s *LocalSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, err := fhevm.TypedDataHash(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignTx signs tx for chainID with the latest signer for that chain.
func (s *LocalSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// RecoverTypedDataSigner returns the address that produced sig over td.
func RecoverTypedDataSigner(td apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	digest, err := fhevm.TypedDataHash(td)
	if err != nil {
		return common.Address{}, err
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return common.PubkeyToAddress(*pub), nil
}

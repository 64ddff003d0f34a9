// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package signature

import (
	"time"

	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/math/set"
)

const secondsPerDay = 86400

// DecryptionSignature authorizes a reencryption keypair to decrypt values of
// a set of contracts on behalf of a user for a bounded time.
type DecryptionSignature struct {
	PrivateKey        hexutil.Bytes    `json:"privateKey"`
	PublicKey         hexutil.Bytes    `json:"publicKey"`
	Signature         hexutil.Bytes    `json:"signature"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	UserAddress       common.Address   `json:"userAddress"`
	StartTimestamp    uint64           `json:"startTimestamp"`
	DurationDays      uint64           `json:"durationDays"`
}

// ExpiresAt is the first instant the signature is no longer valid.
func (s *DecryptionSignature) ExpiresAt() time.Time {
	return time.Unix(int64(s.StartTimestamp+s.DurationDays*secondsPerDay), 0)
}

// IsValid reports whether s is still valid at now.
func (s *DecryptionSignature) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt())
}

// Covers reports whether s was signed for exactly contracts.
func (s *DecryptionSignature) Covers(contracts []common.Address) bool {
	signed := set.NewSet[common.Address](len(s.ContractAddresses))
	for _, c := range s.ContractAddresses {
		signed.Add(c)
	}
	requested := set.NewSet[common.Address](len(contracts))
	for _, c := range contracts {
		requested.Add(c)
	}
	if signed.Len() != requested.Len() {
		return false
	}
	for _, c := range contracts {
		if !signed.Contains(c) {
			return false
		}
	}
	return true
}

// Request returns the fields the backend needs to decrypt.
func (s *DecryptionSignature) Request() fhevm.UserDecryptRequest {
	return fhevm.UserDecryptRequest{
		PrivateKey:        s.PrivateKey,
		PublicKey:         s.PublicKey,
		Signature:         s.Signature,
		ContractAddresses: s.ContractAddresses,
		UserAddress:       s.UserAddress,
		StartTimestamp:    s.StartTimestamp,
		DurationDays:      s.DurationDays,
	}
}

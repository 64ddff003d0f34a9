// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"fmt"
	"strconv"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/common/math"
	"github.com/luxfi/geth/signer/core/apitypes"
)

const (
	DecryptionDomainName    = "Decryption"
	DecryptionDomainVersion = "1"
	UserDecryptPrimaryType  = "UserDecryptRequestVerification"
)

// NewUserDecryptTypedData returns the EIP-712 payload authorizing publicKey
// to receive reencrypted values of contracts for durationDays starting at
// startTimestamp. verifyingContract is the KMS verifier of the chain.
func NewUserDecryptTypedData(
	chainID uint64,
	verifyingContract common.Address,
	publicKey []byte,
	contracts []common.Address,
	startTimestamp uint64,
	durationDays uint64,
) apitypes.TypedData {
	addrs := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addrs[i] = c.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			UserDecryptPrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "contractsChainId", Type: "uint256"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: UserDecryptPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DecryptionDomainName,
			Version:           DecryptionDomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": addrs,
			"contractsChainId":  strconv.FormatUint(chainID, 10),
			"startTimestamp":    strconv.FormatUint(startTimestamp, 10),
			"durationDays":      strconv.FormatUint(durationDays, 10),
		},
	}
}

// TypedDataHash returns the EIP-712 digest that is signed.
func TypedDataHash(td apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return hash, nil
}

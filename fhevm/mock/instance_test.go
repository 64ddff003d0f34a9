// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package mock

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/geth/common"
	crypto "github.com/luxfi/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032c93F642f64180aa3")
	testMetadata = fhevm.RelayerMetadata{
		ACLAddress:           common.HexToAddress("0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D"),
		InputVerifierAddress: common.HexToAddress("0x901F8942346f7AB3a01F6D7613119Bca447Bb030"),
		KMSVerifierAddress:   common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
	}
)

func newTestInstance(t *testing.T) (*Instance, *Registry) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	return NewInstance(fhevm.MockParams{ChainID: 31337, Metadata: testMetadata}, registry), registry
}

// signedRequest signs a decryption request for contracts as user.
func signedRequest(
	t *testing.T,
	inst *Instance,
	user *ecdsa.PrivateKey,
	contracts []common.Address,
	start uint64,
	days uint64,
) fhevm.UserDecryptRequest {
	require := require.New(t)

	kp, err := inst.GenerateKeypair()
	require.NoError(err)
	td, err := inst.CreateEIP712(kp.PublicKey, contracts, start, days)
	require.NoError(err)
	digest, err := fhevm.TypedDataHash(td)
	require.NoError(err)
	sig, err := crypto.Sign(digest, user)
	require.NoError(err)
	sig[crypto.RecoveryIDOffset] += 27

	return fhevm.UserDecryptRequest{
		PrivateKey:        kp.PrivateKey,
		PublicKey:         kp.PublicKey,
		Signature:         sig,
		ContractAddresses: contracts,
		UserAddress:       common.PubkeyToAddress(user.PublicKey),
		StartTimestamp:    start,
		DurationDays:      days,
	}
}

func TestEncryptAndVerifyProof(t *testing.T) {
	require := require.New(t)

	inst, registry := newTestInstance(t)
	user := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	enc, err := inst.CreateEncryptedInput(testContract, user).Add32(42).Encrypt(context.Background())
	require.NoError(err)
	require.Len(enc.Handles, 1)
	require.Equal(typeEuint32, enc.Handles[0][30])
	require.Equal(1, registry.Len())

	require.NoError(registry.VerifyInputProof(testContract, user, 31337, enc.Handles[0], enc.InputProof))
	require.ErrorIs(registry.VerifyInputProof(testContract, common.Address{1}, 31337, enc.Handles[0], enc.InputProof), ErrInvalidProof)
	require.ErrorIs(registry.VerifyInputProof(testContract, user, 1, enc.Handles[0], enc.InputProof), ErrInvalidProof)
	require.ErrorIs(registry.VerifyInputProof(testContract, user, 31337, common.Hash{9}, enc.InputProof), ErrInvalidProof)
	require.ErrorIs(registry.VerifyInputProof(testContract, user, 31337, enc.Handles[0], enc.InputProof[:10]), ErrInvalidProof)

	_, err = inst.CreateEncryptedInput(testContract, user).Encrypt(context.Background())
	require.Error(err)
}

func TestUserDecrypt(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	inst, _ := newTestInstance(t)
	userKey, err := crypto.GenerateKey()
	require.NoError(err)
	user := common.PubkeyToAddress(userKey.PublicKey)

	values := []uint32{0, 7, 4294967295}
	var pairs []fhevm.HandleContractPair
	for _, v := range values {
		enc, err := inst.CreateEncryptedInput(testContract, user).Add32(v).Encrypt(ctx)
		require.NoError(err)
		pairs = append(pairs, fhevm.HandleContractPair{Handle: enc.Handles[0], ContractAddress: testContract})
	}

	now := time.Unix(1_750_000_000, 0)
	inst.now = func() time.Time { return now }
	req := signedRequest(t, inst, userKey, []common.Address{testContract}, uint64(now.Unix()), 365)

	clear, err := inst.UserDecrypt(ctx, pairs, req)
	require.NoError(err)
	for i, p := range pairs {
		require.Equal(uint64(values[i]), clear[p.Handle].Uint64())
	}

	// A rebuilt instance over the same registry still decrypts.
	rebuilt := NewInstance(fhevm.MockParams{ChainID: 31337, Metadata: testMetadata}, inst.registry)
	rebuilt.now = inst.now
	_, err = rebuilt.UserDecrypt(ctx, pairs, req)
	require.NoError(err)
}

func TestUserDecryptRejects(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_750_000_000, 0)

	tests := []struct {
		name   string
		mutate func(req *fhevm.UserDecryptRequest, pairs *[]fhevm.HandleContractPair)
		now    time.Time
	}{
		{
			name: "expired",
			now:  start.Add(2 * 24 * time.Hour),
		},
		{
			name: "other user",
			now:  start,
			mutate: func(req *fhevm.UserDecryptRequest, _ *[]fhevm.HandleContractPair) {
				req.UserAddress = common.Address{0x01}
			},
		},
		{
			name: "window tampered",
			now:  start,
			mutate: func(req *fhevm.UserDecryptRequest, _ *[]fhevm.HandleContractPair) {
				req.DurationDays = 10
			},
		},
		{
			name: "contract not signed",
			now:  start,
			mutate: func(_ *fhevm.UserDecryptRequest, pairs *[]fhevm.HandleContractPair) {
				(*pairs)[0].ContractAddress = common.Address{0x02}
			},
		},
		{
			name: "unknown handle",
			now:  start,
			mutate: func(_ *fhevm.UserDecryptRequest, pairs *[]fhevm.HandleContractPair) {
				(*pairs)[0].Handle = common.Hash{0x03}
			},
		},
		{
			name: "keypair mismatch",
			now:  start,
			mutate: func(req *fhevm.UserDecryptRequest, _ *[]fhevm.HandleContractPair) {
				req.PublicKey = append([]byte(nil), req.PublicKey[:len(req.PublicKey)-1]...)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			inst, _ := newTestInstance(t)
			userKey, err := crypto.GenerateKey()
			require.NoError(err)
			user := common.PubkeyToAddress(userKey.PublicKey)

			enc, err := inst.CreateEncryptedInput(testContract, user).Add32(1).Encrypt(ctx)
			require.NoError(err)
			pairs := []fhevm.HandleContractPair{{Handle: enc.Handles[0], ContractAddress: testContract}}
			req := signedRequest(t, inst, userKey, []common.Address{testContract}, uint64(start.Unix()), 1)
			if tt.mutate != nil {
				tt.mutate(&req, &pairs)
			}
			inst.now = func() time.Time { return tt.now }

			_, err = inst.UserDecrypt(ctx, pairs, req)
			require.Error(err)
		})
	}
}

func TestBuilder(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	inst, err := Builder(registry)(context.Background(), fhevm.MockParams{ChainID: 31337, Metadata: testMetadata})
	require.NoError(t, err)
	require.Equal(t, registry.publicKey, inst.PublicKey())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Builder(registry)(ctx, fhevm.MockParams{})
	require.ErrorIs(t, err, context.Canceled)
}

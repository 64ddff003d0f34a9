// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package signature

import (
	"context"
	"math/big"
	"testing"

	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/stretchr/testify/require"
)

// First hardhat development account.
const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestLocalSignerFromHex(t *testing.T) {
	require := require.New(t)

	s, err := NewLocalSignerFromHex(hardhatKey)
	require.NoError(err)
	require.Equal(common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())

	_, err = NewLocalSignerFromHex("0xnothex")
	require.Error(err)
}

func TestSignTypedDataRecovers(t *testing.T) {
	require := require.New(t)

	s, err := NewLocalSignerFromHex(hardhatKey)
	require.NoError(err)
	td := fhevm.NewUserDecryptTypedData(
		31337,
		common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
		[]byte{0x01, 0x02},
		[]common.Address{contractA},
		1_750_000_000,
		1,
	)

	sig, err := s.SignTypedData(context.Background(), td)
	require.NoError(err)
	require.Len(sig, 65)
	require.Contains([]byte{27, 28}, sig[64])

	addr, err := RecoverTypedDataSigner(td, sig)
	require.NoError(err)
	require.Equal(s.Address(), addr)

	// A different window must not recover to the same signer.
	other := fhevm.NewUserDecryptTypedData(
		31337,
		common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
		[]byte{0x01, 0x02},
		[]common.Address{contractA},
		1_750_000_000,
		2,
	)
	addr, err = RecoverTypedDataSigner(other, sig)
	if err == nil {
		require.NotEqual(s.Address(), addr)
	}

	_, err = RecoverTypedDataSigner(td, sig[:64])
	require.Error(err)
}

func TestSignTypedDataCancelled(t *testing.T) {
	s, err := NewLocalSignerFromHex(hardhatKey)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SignTypedData(ctx, fhevm.NewUserDecryptTypedData(1, contractA, nil, nil, 0, 1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSignTx(t *testing.T) {
	require := require.New(t)

	s, err := NewLocalSignerFromHex(hardhatKey)
	require.NoError(err)
	chainID := big.NewInt(31337)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21_000,
		To:        &contractA,
	})

	signed, err := s.SignTx(context.Background(), tx, chainID)
	require.NoError(err)
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(err)
	require.Equal(s.Address(), sender)
}

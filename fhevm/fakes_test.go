// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/signer/core/apitypes"
)

type fakeProvider struct {
	chainID uint64
	err     error
}

func (f fakeProvider) ChainID(context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).SetUint64(f.chainID), nil
}

// fakeRPC answers JSON-RPC calls from a fixed table.
type fakeRPC struct {
	lock    sync.Mutex
	results map[string]interface{}
	errs    map[string]error
	calls   map[string]int
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		results: make(map[string]interface{}),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeRPC) dial(context.Context, string) (RPCCaller, error) { return f, nil }

func (f *fakeRPC) CallContext(_ context.Context, result interface{}, method string, _ ...interface{}) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.calls[method]++
	if err := f.errs[method]; err != nil {
		return err
	}
	v, ok := f.results[method]
	if !ok {
		return errors.New("the method " + method + " does not exist/is not available")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (*fakeRPC) Close() {}

func (f *fakeRPC) count(method string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[method]
}

type fakeInstance struct {
	publicKey    []byte
	publicParams []byte
}

var _ Instance = (*fakeInstance)(nil)

func (*fakeInstance) CreateEncryptedInput(common.Address, common.Address) EncryptedInput { return nil }

func (*fakeInstance) GenerateKeypair() (Keypair, error) { return Keypair{}, nil }

func (*fakeInstance) CreateEIP712([]byte, []common.Address, uint64, uint64) (apitypes.TypedData, error) {
	return apitypes.TypedData{}, nil
}

func (*fakeInstance) UserDecrypt(context.Context, []HandleContractPair, UserDecryptRequest) (map[common.Hash]*uint256.Int, error) {
	return nil, nil
}

func (f *fakeInstance) PublicKey() []byte { return f.publicKey }

func (f *fakeInstance) PublicParams(int) []byte { return f.publicParams }

type fakeBackend struct {
	cfg        NetworkConfig
	readyErr   error
	createErr  error
	onCreate   func()
	created    []InstanceConfig
	readyCalls int
}

func (f *fakeBackend) EnsureReady(_ context.Context, onStatus StatusFunc) error {
	f.readyCalls++
	if f.readyErr != nil {
		return f.readyErr
	}
	if f.readyCalls == 1 {
		onStatus.Notify(StatusSDKLoading)
		onStatus.Notify(StatusSDKLoaded)
		onStatus.Notify(StatusSDKInitializing)
		onStatus.Notify(StatusSDKInitialized)
	}
	return nil
}

func (f *fakeBackend) NetworkConfig() (NetworkConfig, error) { return f.cfg, nil }

func (f *fakeBackend) CreateInstance(_ context.Context, cfg InstanceConfig) (Instance, error) {
	f.created = append(f.created, cfg)
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &fakeInstance{publicKey: []byte{0x01, 0x02}, publicParams: []byte{0x03}}, nil
}

func mockChains() chain.MockChains {
	return chain.NewMockChains(nil)
}

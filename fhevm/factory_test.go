// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/storage"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const testACL = "0x687820221192C5B662b25367F70076A37bc79b6c"

var hardhatMetadata = map[string]interface{}{
	"ACLAddress":           "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D",
	"InputVerifierAddress": "0x901F8942346f7AB3a01F6D7613119Bca447Bb030",
	"KMSVerifierAddress":   "0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC",
}

type factoryTest struct {
	factory  *Factory
	rpc      *fakeRPC
	backend  *fakeBackend
	keys     *PublicKeyStorage
	metrics  *FactoryMetrics
	mockMade []MockParams
}

func newFactoryTest(localDev bool) *factoryTest {
	ft := &factoryTest{
		rpc:     newFakeRPC(),
		backend: &fakeBackend{cfg: NetworkConfig{ACLContractAddress: testACL, ChainID: 11155111}},
		keys:    NewPublicKeyStorage(log.NewNoOpLogger(), storage.NewMemoryStorage()),
		metrics: NewFactoryMetrics(prometheus.NewRegistry()),
	}
	ft.rpc.results[clientVersionMethod] = "HardhatNetwork/2.22.10"
	ft.rpc.results[relayerMetadataMethod] = hardhatMetadata

	resolver := chain.NewResolver(log.NewNoOpLogger(), chain.Options{LocalDev: localDev, WalletFallback: true})
	newMock := func(_ context.Context, p MockParams) (Instance, error) {
		ft.mockMade = append(ft.mockMade, p)
		return &fakeInstance{}, nil
	}
	ft.factory = NewFactory(
		log.NewNoOpLogger(),
		resolver,
		NewNodeProbe(log.NewNoOpLogger(), ft.rpc.dial),
		ft.backend,
		newMock,
		ft.keys,
		ft.metrics,
	)
	return ft
}

func (ft *factoryTest) create(ctx context.Context, chainID uint64) (Instance, []Status, error) {
	var statuses []Status
	inst, err := ft.factory.CreateInstance(ctx, Params{
		Target:         chain.ProviderTarget(fakeProvider{chainID: chainID}),
		MockChains:     mockChains(),
		OnStatusChange: func(s Status) { statuses = append(statuses, s) },
	})
	return inst, statuses, err
}

func TestFactoryMockPath(t *testing.T) {
	require := require.New(t)

	ft := newFactoryTest(true)
	inst, statuses, err := ft.create(context.Background(), chain.LocalChainID)
	require.NoError(err)
	require.NotNil(inst)
	require.Equal([]Status{StatusCreating}, statuses)
	require.Len(ft.mockMade, 1)
	require.Equal(chain.LocalRPCURL, ft.mockMade[0].RPCURL)
	require.Equal(common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"), ft.mockMade[0].Metadata.KMSVerifierAddress)
	require.Zero(ft.backend.readyCalls)
	require.Equal(1.0, testutil.ToFloat64(ft.metrics.instanceCreationCount.WithLabelValues(pathMock, resultSuccess)))
}

func TestFactoryMockChainWithoutMetadataFails(t *testing.T) {
	require := require.New(t)

	ft := newFactoryTest(true)
	ft.rpc.errs[relayerMetadataMethod] = errors.New("method not found")

	_, _, err := ft.create(context.Background(), chain.LocalChainID)
	require.Equal(fhesurvey.CodeMockChainNoMetadata, fhesurvey.CodeOf(err))
	require.Zero(ft.backend.readyCalls)
	require.Empty(ft.backend.created)
}

func TestFactoryUnreachableDevNode(t *testing.T) {
	ft := newFactoryTest(true)
	ft.rpc.errs[clientVersionMethod] = errors.New("connection refused")

	_, _, err := ft.create(context.Background(), chain.LocalChainID)
	require.Equal(t, fhesurvey.CodeWeb3ClientVersion, fhesurvey.CodeOf(err))
}

func TestFactoryNonHardhatNodeUsesProduction(t *testing.T) {
	require := require.New(t)

	ft := newFactoryTest(true)
	ft.rpc.results[clientVersionMethod] = "Geth/v1.14.0"

	_, _, err := ft.create(context.Background(), chain.LocalChainID)
	require.NoError(err)
	require.Empty(ft.mockMade)
	require.Len(ft.backend.created, 1)
}

func TestFactoryMockIgnoredOutsideLocalDev(t *testing.T) {
	require := require.New(t)

	ft := newFactoryTest(false)
	_, _, err := ft.create(context.Background(), chain.LocalChainID)
	require.NoError(err)
	require.Empty(ft.mockMade)
	require.Zero(ft.rpc.count(clientVersionMethod))
	require.Len(ft.backend.created, 1)
}

func TestFactoryProductionPath(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	ft := newFactoryTest(false)
	inst, statuses, err := ft.create(ctx, chain.SepoliaChainID)
	require.NoError(err)
	require.Equal([]Status{
		StatusSDKLoading,
		StatusSDKLoaded,
		StatusSDKInitializing,
		StatusSDKInitialized,
		StatusCreating,
	}, statuses)
	require.Empty(ft.backend.created[0].PublicKey)

	km, ok := ft.keys.Get(ctx, common.HexToAddress(testACL))
	require.True(ok)
	require.Equal(inst.PublicKey(), []byte(km.PublicKey))
	require.Equal(inst.PublicParams(publicParamsBits), []byte(km.PublicParams))

	// The second instance is built from the cached key and skips the
	// satisfied bootstrap steps.
	_, statuses, err = ft.create(ctx, chain.SepoliaChainID)
	require.NoError(err)
	require.Equal([]Status{StatusCreating}, statuses)
	require.Equal([]byte{0x01, 0x02}, ft.backend.created[1].PublicKey)
	require.Equal([]byte{0x03}, ft.backend.created[1].PublicParams)
}

func TestFactoryInvalidACL(t *testing.T) {
	for _, acl := range []string{"", "0x1234", "687820221192C5B662b25367F70076A37bc79b6c", "not an address"} {
		ft := newFactoryTest(false)
		ft.backend.cfg.ACLContractAddress = acl

		_, _, err := ft.create(context.Background(), chain.SepoliaChainID)
		require.Equal(t, fhesurvey.CodeInvalidACL, fhesurvey.CodeOf(err), acl)
		require.Empty(t, ft.backend.created)
	}
}

func TestFactoryBackendError(t *testing.T) {
	ft := newFactoryTest(false)
	ft.backend.readyErr = fhesurvey.Errorf(fhesurvey.CodeSDKLoadTimeout, "timeout")

	_, _, err := ft.create(context.Background(), chain.SepoliaChainID)
	require.Equal(t, fhesurvey.CodeSDKLoadTimeout, fhesurvey.CodeOf(err))
	require.Equal(t, 1.0, testutil.ToFloat64(ft.metrics.instanceCreationCount.WithLabelValues(pathProduction, resultError)))
}

func TestFactoryCancelledStillCachesKey(t *testing.T) {
	require := require.New(t)

	ft := newFactoryTest(false)
	ctx, cancel := context.WithCancel(context.Background())
	ft.backend.onCreate = cancel

	_, _, err := ft.create(ctx, chain.SepoliaChainID)
	require.True(fhesurvey.IsCancelled(err))
	require.ErrorIs(err, fhesurvey.ErrCancelled)

	_, ok := ft.keys.Get(context.Background(), common.HexToAddress(testACL))
	require.True(ok)
	require.Equal(1.0, testutil.ToFloat64(ft.metrics.instanceCreationCount.WithLabelValues(pathProduction, resultCancelled)))
}

func TestFactoryCancelledBeforeStart(t *testing.T) {
	ft := newFactoryTest(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ft.create(ctx, chain.LocalChainID)
	require.ErrorIs(t, err, fhesurvey.ErrCancelled)
	require.Empty(t, ft.mockMade)
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
)

const publicParamsBits = 2048

const (
	pathMock       = "mock"
	pathProduction = "production"

	resultSuccess   = "success"
	resultCancelled = "cancelled"
	resultError     = "error"
)

// Backend is the production encryption backend: a loadable SDK with a
// default network configuration and an instance constructor.
type Backend interface {
	// EnsureReady loads and initializes the SDK, notifying each step that
	// actually runs.
	EnsureReady(ctx context.Context, onStatus StatusFunc) error
	NetworkConfig() (NetworkConfig, error)
	CreateInstance(ctx context.Context, cfg InstanceConfig) (Instance, error)
}

// MockBuilder constructs an instance against a development node.
type MockBuilder func(ctx context.Context, params MockParams) (Instance, error)

type Params struct {
	Target         chain.Target
	MockChains     chain.MockChains
	OnStatusChange StatusFunc
}

// Factory composes chain resolution, backend bootstrap and the key cache into
// ready instances.
type Factory struct {
	logger   log.Logger
	resolver *chain.Resolver
	probe    *NodeProbe
	backend  Backend
	newMock  MockBuilder
	keys     *PublicKeyStorage
	metrics  *FactoryMetrics
}

func NewFactory(
	logger log.Logger,
	resolver *chain.Resolver,
	probe *NodeProbe,
	backend Backend,
	newMock MockBuilder,
	keys *PublicKeyStorage,
	metrics *FactoryMetrics,
) *Factory {
	return &Factory{
		logger:   logger,
		resolver: resolver,
		probe:    probe,
		backend:  backend,
		newMock:  newMock,
		keys:     keys,
		metrics:  metrics,
	}
}

// CreateInstance resolves the chain behind params.Target and builds an
// instance for it. A cancelled ctx yields fhesurvey.ErrCancelled.
func (f *Factory) CreateInstance(ctx context.Context, params Params) (Instance, error) {
	start := time.Now()
	inst, path, err := f.createInstance(ctx, params)

	result := resultSuccess
	switch {
	case fhesurvey.IsCancelled(err):
		result = resultCancelled
	case err != nil:
		result = resultError
	}
	f.metrics.observe(path, result, float64(time.Since(start).Milliseconds()))
	return inst, err
}

func (f *Factory) createInstance(ctx context.Context, params Params) (Instance, string, error) {
	res, err := f.resolver.Resolve(ctx, params.Target, params.MockChains)
	if err != nil {
		return nil, pathProduction, err
	}
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, pathProduction, err
	}
	f.logger.Info("Resolved chain",
		"chainID", res.ChainID,
		"isMock", res.IsMock,
		"rpcURL", res.RPCURL,
	)

	if res.IsMock {
		if !f.resolver.LocalDev() {
			f.logger.Info("Mock chain outside local development, using production backend",
				"chainID", res.ChainID,
			)
		} else {
			inst, ok, err := f.createMockInstance(ctx, res, params.OnStatusChange)
			if ok || err != nil {
				return inst, pathMock, err
			}
		}
	}

	inst, err := f.createProductionInstance(ctx, params)
	return inst, pathProduction, err
}

// createMockInstance returns ok == false when the node is not a development
// node and the production path applies.
func (f *Factory) createMockInstance(
	ctx context.Context,
	res chain.ChainResolution,
	onStatus StatusFunc,
) (Instance, bool, error) {
	version, err := f.probe.ClientVersion(ctx, res.RPCURL)
	if err != nil {
		if cerr := fhesurvey.CheckCancelled(ctx); cerr != nil {
			return nil, false, cerr
		}
		return nil, false, fhesurvey.NewError(
			fhesurvey.CodeWeb3ClientVersion,
			fmt.Sprintf("the URL %s is not a Web3 node or is not reachable", res.RPCURL),
			err,
		)
	}
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, false, err
	}
	if !IsHardhat(version) {
		f.logger.Info("Node is not a development node, using production backend",
			"rpcURL", res.RPCURL,
			"clientVersion", version,
		)
		return nil, false, nil
	}

	md, ok := f.probe.RelayerMetadata(ctx, res.RPCURL)
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fhesurvey.Errorf(
			fhesurvey.CodeMockChainNoMetadata,
			"chain %d is configured as a mock chain but FHE relayer metadata could not be fetched from %s",
			res.ChainID,
			res.RPCURL,
		)
	}
	if f.newMock == nil {
		return nil, false, errors.New("no mock backend configured")
	}

	onStatus.Notify(StatusCreating)
	inst, err := f.newMock(ctx, MockParams{
		RPCURL:   res.RPCURL,
		ChainID:  res.ChainID,
		Metadata: md,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create mock instance: %w", err)
	}
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, false, err
	}
	f.logger.Info("Created mock instance",
		"chainID", res.ChainID,
		"aclAddress", md.ACLAddress,
	)
	return inst, true, nil
}

func (f *Factory) createProductionInstance(ctx context.Context, params Params) (Instance, error) {
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	if err := f.backend.EnsureReady(ctx, params.OnStatusChange); err != nil {
		return nil, err
	}

	cfg, err := f.backend.NetworkConfig()
	if err != nil {
		return nil, err
	}
	acl := cfg.ACLContractAddress
	if !strings.HasPrefix(acl, "0x") || !common.IsHexAddress(acl) {
		return nil, fhesurvey.Errorf(fhesurvey.CodeInvalidACL, "invalid address: %q", acl)
	}
	aclAddress := common.HexToAddress(acl)

	km, cached := f.keys.Get(ctx, aclAddress)
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	params.OnStatusChange.Notify(StatusCreating)
	inst, err := f.backend.CreateInstance(ctx, InstanceConfig{
		NetworkConfig: cfg,
		Network:       params.Target,
		PublicKey:     km.PublicKey,
		PublicParams:  km.PublicParams,
	})
	if err != nil {
		if cerr := fhesurvey.CheckCancelled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	// The key is stored even when the caller has gone away.
	if err := f.keys.Set(
		context.WithoutCancel(ctx),
		aclAddress,
		inst.PublicKey(),
		inst.PublicParams(publicParamsBits),
	); err != nil {
		f.logger.Warn("Failed to cache public key",
			"aclAddress", aclAddress,
			log.Err(err),
		)
	}
	if err := fhesurvey.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	f.logger.Info("Created instance",
		"aclAddress", aclAddress,
		"cachedKey", cached,
	)
	return inst, nil
}

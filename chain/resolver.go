// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain decides which encryption backend applies to a connected
// network.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/geth/ethclient"
	"github.com/luxfi/log"
)

// Provider is a live connection able to report its chain id, such as a
// wallet or an ethclient.Client.
type Provider interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dialer connects to a raw RPC URL.
type Dialer func(ctx context.Context, url string) (Provider, error)

// Target is either a raw RPC URL or a live provider. Exactly one is set.
type Target struct {
	URL      string
	Provider Provider
}

func URLTarget(url string) Target { return Target{URL: url} }

func ProviderTarget(p Provider) Target { return Target{Provider: p} }

func (t Target) String() string {
	if t.URL != "" {
		return t.URL
	}
	return "provider"
}

// ChainResolution is the outcome of Resolve. RPCURL is empty for production
// chains reached through a provider.
type ChainResolution struct {
	IsMock  bool
	ChainID uint64
	RPCURL  string
}

type Options struct {
	// LocalDev marks a local development context. When set, chains outside
	// the mock table are redirected to the default mock chain.
	LocalDev bool
	// WalletFallback resolves to the default mock chain when a provider
	// cannot report its chain id.
	WalletFallback bool
	Dial           Dialer
}

type Resolver struct {
	logger log.Logger
	opts   Options
}

func NewResolver(logger log.Logger, opts Options) *Resolver {
	if opts.Dial == nil {
		opts.Dial = DialEthClient
	}
	return &Resolver{logger: logger, opts: opts}
}

// LocalDev reports whether the resolver runs in a local development context.
func (r *Resolver) LocalDev() bool {
	return r.opts.LocalDev
}

// DialEthClient dials url with the geth client.
func DialEthClient(ctx context.Context, url string) (Provider, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Resolver) Resolve(ctx context.Context, target Target, mocks MockChains) (ChainResolution, error) {
	mocks = mocks.withDefault()

	if target.Provider == nil {
		chainID, err := r.urlChainID(ctx, target.URL)
		if err != nil {
			return ChainResolution{}, err
		}
		_, isMock := mocks.Lookup(chainID)
		r.logger.Debug("Resolved RPC URL", "chainID", chainID, "rpcURL", target.URL, "isMock", isMock)
		return ChainResolution{IsMock: isMock, ChainID: chainID, RPCURL: target.URL}, nil
	}

	id, err := target.Provider.ChainID(ctx)
	if err != nil {
		if def, ok := mocks.First(); ok && r.opts.WalletFallback {
			r.logger.Warn("Provider did not report a chain id, using default mock chain",
				"chainID", def.ChainID,
				"rpcURL", def.RPCURL,
				log.Err(err),
			)
			return ChainResolution{IsMock: true, ChainID: def.ChainID, RPCURL: def.RPCURL}, nil
		}
		return ChainResolution{}, fhesurvey.NewError(fhesurvey.CodeChainID, "failed to read chain id from provider", err)
	}
	if id == nil || !id.IsUint64() {
		return ChainResolution{}, fhesurvey.Errorf(fhesurvey.CodeChainID, "provider returned invalid chain id %v", id)
	}
	chainID := id.Uint64()

	if url, ok := mocks.Lookup(chainID); ok {
		r.logger.Debug("Detected mock chain", "chainID", chainID, "rpcURL", url)
		return ChainResolution{IsMock: true, ChainID: chainID, RPCURL: url}, nil
	}

	if def, ok := mocks.First(); ok && r.opts.LocalDev {
		r.logger.Info("Chain is not a mock chain, using default mock chain for local development",
			"chainID", chainID,
			"mockChainID", def.ChainID,
		)
		return ChainResolution{IsMock: true, ChainID: def.ChainID, RPCURL: def.RPCURL}, nil
	}

	r.logger.Debug("Resolved production chain", "chainID", chainID)
	return ChainResolution{ChainID: chainID}, nil
}

func (r *Resolver) urlChainID(ctx context.Context, url string) (uint64, error) {
	if url == "" {
		return 0, fhesurvey.Errorf(fhesurvey.CodeChainID, "empty target")
	}
	p, err := r.opts.Dial(ctx, url)
	if err != nil {
		return 0, fhesurvey.NewError(fhesurvey.CodeChainID, fmt.Sprintf("failed to dial %s", url), err)
	}
	if c, ok := p.(interface{ Close() }); ok {
		defer c.Close()
	}
	id, err := p.ChainID(ctx)
	if err != nil {
		return 0, fhesurvey.NewError(fhesurvey.CodeChainID, fmt.Sprintf("failed to read chain id from %s", url), err)
	}
	if !id.IsUint64() {
		return 0, fhesurvey.Errorf(fhesurvey.CodeChainID, "%s returned invalid chain id %s", url, id)
	}
	return id.Uint64(), nil
}

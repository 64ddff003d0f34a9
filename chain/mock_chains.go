// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	LocalChainID   uint64 = 31337
	LocalRPCURL           = "http://localhost:8545"
	SepoliaChainID uint64 = 11155111
)

// MockChain is a local development chain served by an FHE-enabled dev node.
type MockChain struct {
	ChainID uint64 `mapstructure:"chain-id" json:"chain-id"`
	RPCURL  string `mapstructure:"rpc-url" json:"rpc-url"`
}

// MockChains is ordered ascending by chain id. The first entry is the default
// mock chain.
type MockChains []MockChain

// NewMockChains merges entries over the default local chain and orders the
// result. Later duplicates win.
func NewMockChains(entries map[uint64]string) MockChains {
	merged := map[uint64]string{LocalChainID: LocalRPCURL}
	for id, url := range entries {
		merged[id] = url
	}
	chains := make(MockChains, 0, len(merged))
	for id, url := range merged {
		chains = append(chains, MockChain{ChainID: id, RPCURL: url})
	}
	slices.SortFunc(chains, func(a, b MockChain) int {
		switch {
		case a.ChainID < b.ChainID:
			return -1
		case a.ChainID > b.ChainID:
			return 1
		}
		return 0
	})
	return chains
}

// ParseMockChains parses "id=url" pairs as accepted on the command line.
func ParseMockChains(pairs []string) (MockChains, error) {
	entries := make(map[uint64]string, len(pairs))
	for _, pair := range pairs {
		idStr, url, ok := strings.Cut(pair, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("invalid mock chain %q: expected <chain-id>=<rpc-url>", pair)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid mock chain id %q: %w", idStr, err)
		}
		entries[id] = strings.TrimSpace(url)
	}
	return NewMockChains(entries), nil
}

// withDefault returns m with the local chain present and sorted.
func (m MockChains) withDefault() MockChains {
	entries := make(map[uint64]string, len(m))
	for _, c := range m {
		entries[c.ChainID] = c.RPCURL
	}
	return NewMockChains(entries)
}

func (m MockChains) Lookup(chainID uint64) (string, bool) {
	for _, c := range m {
		if c.ChainID == chainID {
			return c.RPCURL, true
		}
	}
	return "", false
}

func (m MockChains) First() (MockChain, bool) {
	if len(m) == 0 {
		return MockChain{}, false
	}
	return m[0], true
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/geth/common"
)

// Deployment locates the survey contract on one chain.
type Deployment struct {
	ChainID   uint64         `json:"chainId"`
	ChainName string         `json:"chainName"`
	Address   common.Address `json:"address"`
}

// Deployments is an address book of survey contracts keyed by chain id.
type Deployments map[uint64]Deployment

// ParseDeployments parses "chainID=address" or "chainID=address:name" entries.
func ParseDeployments(entries []string) (Deployments, error) {
	d := make(Deployments, len(entries))
	for _, entry := range entries {
		id, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid deployment %q: expected chainID=address", entry)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid deployment chain id %q: %w", id, err)
		}
		addr, name, _ := strings.Cut(strings.TrimSpace(rest), ":")
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid deployment address %q", addr)
		}
		if name == "" {
			name = chainName(chainID)
		}
		d[chainID] = Deployment{
			ChainID:   chainID,
			ChainName: name,
			Address:   common.HexToAddress(addr),
		}
	}
	return d, nil
}

func chainName(chainID uint64) string {
	switch chainID {
	case chain.LocalChainID:
		return "hardhat"
	case chain.SepoliaChainID:
		return "sepolia"
	default:
		return strconv.FormatUint(chainID, 10)
	}
}

// Lookup returns the deployment on chainID. Zero addresses count as absent.
func (d Deployments) Lookup(chainID uint64) (Deployment, bool) {
	dep, ok := d[chainID]
	if !ok || dep.Address == (common.Address{}) {
		return Deployment{}, false
	}
	return dep, true
}

// EffectiveChainID picks the chain whose deployment should be used for a
// wallet on walletChainID (0 when no wallet is connected).
//
// The wallet chain wins when it has a deployment, except that the local
// chain is never used outside local development. Otherwise the local
// deployment is used in local development and Sepolia everywhere else.
func (d Deployments) EffectiveChainID(walletChainID uint64, localDev bool) (uint64, bool) {
	if walletChainID != 0 {
		if _, ok := d.Lookup(walletChainID); ok {
			if walletChainID != chain.LocalChainID || localDev {
				return walletChainID, true
			}
			if _, ok := d.Lookup(chain.SepoliaChainID); ok {
				return chain.SepoliaChainID, true
			}
			return 0, false
		}
	}
	if localDev {
		if _, ok := d.Lookup(chain.LocalChainID); ok {
			return chain.LocalChainID, true
		}
		return 0, false
	}
	if _, ok := d.Lookup(chain.SepoliaChainID); ok {
		return chain.SepoliaChainID, true
	}
	return 0, false
}

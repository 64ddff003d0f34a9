// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"context"
	"strings"
	"time"

	"github.com/luxfi/fhesurvey/cache"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rpc"
	"github.com/luxfi/log"
)

const (
	clientVersionMethod   = "web3_clientVersion"
	relayerMetadataMethod = "fhevm_relayer_metadata"

	defaultClientVersionTTL = 30 * time.Second
)

// RPCCaller is the subset of rpc.Client used to probe development nodes.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

type RPCDialer func(ctx context.Context, url string) (RPCCaller, error)

func DialRPC(ctx context.Context, url string) (RPCCaller, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NodeProbe inspects a node to confirm it is an FHE-enabled development node.
// Client versions are cached per URL; failures are not.
type NodeProbe struct {
	logger   log.Logger
	dial     RPCDialer
	versions *cache.TTLCache[string, string]
}

func NewNodeProbe(logger log.Logger, dial RPCDialer) *NodeProbe {
	if dial == nil {
		dial = DialRPC
	}
	return &NodeProbe{
		logger:   logger,
		dial:     dial,
		versions: cache.NewTTLCache[string, string](defaultClientVersionTTL),
	}
}

// ClientVersion returns the node's web3_clientVersion.
func (p *NodeProbe) ClientVersion(ctx context.Context, url string) (string, error) {
	return p.versions.Get(ctx, url, func(ctx context.Context, url string) (string, error) {
		var version string
		if err := p.call(ctx, url, &version, clientVersionMethod); err != nil {
			return "", err
		}
		return version, nil
	}, false)
}

// IsHardhat reports whether version identifies a Hardhat node.
func IsHardhat(version string) bool {
	return strings.Contains(strings.ToLower(version), "hardhat")
}

// RelayerMetadata fetches the node's FHE contract addresses. It returns false
// when the call fails or any address is missing or malformed.
func (p *NodeProbe) RelayerMetadata(ctx context.Context, url string) (RelayerMetadata, bool) {
	var raw map[string]interface{}
	if err := p.call(ctx, url, &raw, relayerMetadataMethod); err != nil {
		p.logger.Warn("Failed to get FHE relayer metadata",
			"rpcURL", url,
			log.Err(err),
		)
		return RelayerMetadata{}, false
	}

	var (
		md RelayerMetadata
		ok bool
	)
	if md.ACLAddress, ok = metadataAddress(raw, "ACLAddress"); !ok {
		return RelayerMetadata{}, false
	}
	if md.InputVerifierAddress, ok = metadataAddress(raw, "InputVerifierAddress"); !ok {
		return RelayerMetadata{}, false
	}
	if md.KMSVerifierAddress, ok = metadataAddress(raw, "KMSVerifierAddress"); !ok {
		return RelayerMetadata{}, false
	}
	return md, true
}

func (p *NodeProbe) call(ctx context.Context, url string, result interface{}, method string) error {
	client, err := p.dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.CallContext(ctx, result, method)
}

func metadataAddress(raw map[string]interface{}, field string) (common.Address, bool) {
	s, ok := raw[field].(string)
	if !ok || !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

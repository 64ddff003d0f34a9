// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer loads and initializes the production relayer SDK: a
// capability object published in a shared Namespace by an injected module.
package relayer

import (
	"context"

	"github.com/luxfi/fhesurvey/fhevm"
)

const (
	// GlobalName is the namespace entry holding the SDK object.
	GlobalName = "relayerSDK"

	KeyInitSDK        = "initSDK"
	KeyCreateInstance = "createInstance"
	KeySepoliaConfig  = "SepoliaConfig"
	KeyInitialized    = "__initialized__"
)

// SepoliaConfig is the public Sepolia network configuration published by the
// SDK.
var SepoliaConfig = fhevm.NetworkConfig{
	ACLContractAddress:           "0x687820221192C5B662b25367F70076A37bc79b6c",
	KMSContractAddress:           "0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC",
	InputVerifierContractAddress: "0xbc91f3daD1A5F19F8390c400196e58073B6a0BC4",
	ChainID:                      11155111,
	GatewayChainID:               55815,
	RelayerURL:                   "https://relayer.testnet.zama.cloud",
}

// InitOptions are forwarded to the SDK's initSDK.
type InitOptions struct {
	TFHEParams []byte
	KMSParams  []byte
	Threads    int
}

type (
	InitSDKFunc        func(ctx context.Context, opts *InitOptions) (bool, error)
	CreateInstanceFunc func(ctx context.Context, cfg fhevm.InstanceConfig) (fhevm.Instance, error)
)

// NewSDKObject returns a capability object in the shape IsRelayerSDK accepts.
func NewSDKObject(initSDK InitSDKFunc, createInstance CreateInstanceFunc, cfg fhevm.NetworkConfig) map[string]any {
	return map[string]any{
		KeyInitSDK:        initSDK,
		KeyCreateInstance: createInstance,
		KeySepoliaConfig:  cfg,
	}
}

// IsRelayerSDK reports whether v satisfies the SDK capability set. It never
// panics, whatever v holds.
func IsRelayerSDK(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return false
	}
	if f, ok := obj[KeyInitSDK].(InitSDKFunc); !ok || f == nil {
		return false
	}
	if f, ok := obj[KeyCreateInstance].(CreateInstanceFunc); !ok || f == nil {
		return false
	}
	if _, ok := networkConfig(obj[KeySepoliaConfig]); !ok {
		return false
	}
	if init, present := obj[KeyInitialized]; present {
		if _, ok := init.(bool); !ok {
			return false
		}
	}
	return true
}

func networkConfig(v any) (fhevm.NetworkConfig, bool) {
	switch cfg := v.(type) {
	case fhevm.NetworkConfig:
		return cfg, true
	case *fhevm.NetworkConfig:
		if cfg == nil {
			return fhevm.NetworkConfig{}, false
		}
		return *cfg, true
	}
	return fhevm.NetworkConfig{}, false
}

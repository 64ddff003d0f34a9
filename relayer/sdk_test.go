// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"testing"

	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/stretchr/testify/require"
)

func testInitSDK(context.Context, *InitOptions) (bool, error) { return true, nil }

func testCreateInstance(context.Context, fhevm.InstanceConfig) (fhevm.Instance, error) {
	return nil, nil
}

func validSDK() map[string]any {
	return NewSDKObject(InitSDKFunc(testInitSDK), CreateInstanceFunc(testCreateInstance), fhevm.NetworkConfig{
		ACLContractAddress: "0x687820221192C5B662b25367F70076A37bc79b6c",
	})
}

func TestIsRelayerSDK(t *testing.T) {
	with := func(key string, v any) map[string]any {
		obj := validSDK()
		obj[key] = v
		return obj
	}
	without := func(key string) map[string]any {
		obj := validSDK()
		delete(obj, key)
		return obj
	}
	var nilMap map[string]any

	tests := []struct {
		name     string
		value    any
		expected bool
	}{
		{name: "valid", value: validSDK(), expected: true},
		{name: "initialized true", value: with(KeyInitialized, true), expected: true},
		{name: "initialized false", value: with(KeyInitialized, false), expected: true},
		{name: "config pointer", value: with(KeySepoliaConfig, &fhevm.NetworkConfig{}), expected: true},
		{name: "nil", value: nil},
		{name: "nil map", value: nilMap},
		{name: "string", value: "relayerSDK"},
		{name: "number", value: 42},
		{name: "struct", value: struct{}{}},
		{name: "missing initSDK", value: without(KeyInitSDK)},
		{name: "missing createInstance", value: without(KeyCreateInstance)},
		{name: "missing config", value: without(KeySepoliaConfig)},
		{name: "nil initSDK", value: with(KeyInitSDK, InitSDKFunc(nil))},
		{name: "untyped initSDK", value: with(KeyInitSDK, testInitSDK)},
		{name: "createInstance not a func", value: with(KeyCreateInstance, "x")},
		{name: "config nil pointer", value: with(KeySepoliaConfig, (*fhevm.NetworkConfig)(nil))},
		{name: "config wrong type", value: with(KeySepoliaConfig, map[string]any{})},
		{name: "initialized string", value: with(KeyInitialized, "true")},
		{name: "initialized nil", value: with(KeyInitialized, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, IsRelayerSDK(tt.value))
		})
	}
}

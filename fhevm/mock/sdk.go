// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package mock

import (
	"context"

	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/relayer"
	"github.com/luxfi/geth/common"
)

// SDKModule returns a relayer module publishing an SDK object whose
// instances are served by registry. It lets the production path run
// without the external relayer.
func SDKModule(registry *Registry, cfg fhevm.NetworkConfig) relayer.Module {
	initSDK := relayer.InitSDKFunc(func(ctx context.Context, _ *relayer.InitOptions) (bool, error) {
		return ctx.Err() == nil, ctx.Err()
	})
	createInstance := relayer.CreateInstanceFunc(func(ctx context.Context, ic fhevm.InstanceConfig) (fhevm.Instance, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewInstance(fhevm.MockParams{
			ChainID: ic.ChainID,
			Metadata: fhevm.RelayerMetadata{
				ACLAddress:           common.HexToAddress(ic.ACLContractAddress),
				InputVerifierAddress: common.HexToAddress(ic.InputVerifierContractAddress),
				KMSVerifierAddress:   common.HexToAddress(ic.KMSContractAddress),
			},
		}, registry), nil
	})
	return func(_ context.Context, ns *relayer.Namespace) error {
		ns.Set(relayer.GlobalName, relayer.NewSDKObject(initSDK, createInstance, cfg))
		return nil
	}
}

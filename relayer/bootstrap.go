// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/log"
	"golang.org/x/sync/singleflight"
)

// State is the SDK lifecycle. It only moves forward.
type State int

const (
	StateAbsent State = iota
	StateLoading
	StateLoaded
	StateInitializing
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var errNotLoaded = errors.New("relayer SDK is not loaded")

var _ fhevm.Backend = (*Bootstrap)(nil)

// Bootstrap owns the process-wide SDK: it loads it once and initializes it
// once, however many callers ask concurrently.
type Bootstrap struct {
	logger   log.Logger
	ns       *Namespace
	loader   *Loader
	initOpts *InitOptions

	group        singleflight.Group
	loading      atomic.Bool
	initializing atomic.Bool
}

func NewBootstrap(logger log.Logger, ns *Namespace, loader *Loader, initOpts *InitOptions) *Bootstrap {
	return &Bootstrap{
		logger:   logger,
		ns:       ns,
		loader:   loader,
		initOpts: initOpts,
	}
}

func (b *Bootstrap) State() State {
	switch {
	case b.IsInitialized():
		return StateInitialized
	case b.initializing.Load():
		return StateInitializing
	case b.loader.IsLoaded():
		return StateLoaded
	case b.loading.Load():
		return StateLoading
	}
	return StateAbsent
}

// IsInitialized reports whether initSDK has succeeded.
func (b *Bootstrap) IsInitialized() bool {
	if !b.loader.IsLoaded() {
		return false
	}
	v, _ := b.ns.Field(GlobalName, KeyInitialized)
	initialized, _ := v.(bool)
	return initialized
}

// EnsureReady loads and initializes the SDK, skipping steps that are already
// done and reporting the ones that run.
func (b *Bootstrap) EnsureReady(ctx context.Context, onStatus fhevm.StatusFunc) error {
	if !b.loader.IsLoaded() {
		onStatus.Notify(fhevm.StatusSDKLoading)
		b.loading.Store(true)
		err := b.loader.Load(ctx)
		b.loading.Store(false)
		if err != nil {
			return err
		}
		if err := fhesurvey.CheckCancelled(ctx); err != nil {
			return err
		}
		onStatus.Notify(fhevm.StatusSDKLoaded)
	}

	if !b.IsInitialized() {
		onStatus.Notify(fhevm.StatusSDKInitializing)
		if err := b.Init(ctx); err != nil {
			return err
		}
		if err := fhesurvey.CheckCancelled(ctx); err != nil {
			return err
		}
		onStatus.Notify(fhevm.StatusSDKInitialized)
	}
	return nil
}

// Init calls the SDK's initSDK once and records the outcome on the SDK object.
func (b *Bootstrap) Init(ctx context.Context) error {
	if b.IsInitialized() {
		return nil
	}

	initCtx := context.WithoutCancel(ctx)
	ch := b.group.DoChan(KeyInitSDK, func() (interface{}, error) {
		b.initializing.Store(true)
		defer b.initializing.Store(false)
		return nil, b.init(initCtx)
	})
	select {
	case <-ctx.Done():
		return fhesurvey.CheckCancelled(ctx)
	case res := <-ch:
		return res.Err
	}
}

func (b *Bootstrap) init(ctx context.Context) error {
	if b.IsInitialized() {
		return nil
	}
	v, ok := b.ns.Field(GlobalName, KeyInitSDK)
	initSDK, _ := v.(InitSDKFunc)
	if !ok || initSDK == nil || !b.loader.IsLoaded() {
		return fhesurvey.NewError(fhesurvey.CodeSDKInit, "relayer SDK is not available", errNotLoaded)
	}

	b.logger.Info("Initializing relayer SDK")
	result, err := initSDK(ctx, b.initOpts)
	b.ns.SetField(GlobalName, KeyInitialized, result && err == nil)
	if err != nil {
		return fhesurvey.NewError(fhesurvey.CodeSDKInit, "initSDK failed", err)
	}
	if !result {
		return fhesurvey.Errorf(fhesurvey.CodeSDKInit, "initSDK failed")
	}
	b.logger.Info("Relayer SDK initialized")
	return nil
}

func (b *Bootstrap) NetworkConfig() (fhevm.NetworkConfig, error) {
	v, _ := b.ns.Field(GlobalName, KeySepoliaConfig)
	cfg, ok := networkConfig(v)
	if !ok {
		return fhevm.NetworkConfig{}, fhesurvey.NewError(fhesurvey.CodeSDKInvalid, "missing network configuration", errNotLoaded)
	}
	return cfg, nil
}

func (b *Bootstrap) CreateInstance(ctx context.Context, cfg fhevm.InstanceConfig) (fhevm.Instance, error) {
	v, _ := b.ns.Field(GlobalName, KeyCreateInstance)
	create, ok := v.(CreateInstanceFunc)
	if !ok || create == nil {
		return nil, fhesurvey.NewError(fhesurvey.CodeSDKInvalid, "missing createInstance", errNotLoaded)
	}
	return create(ctx, cfg)
}

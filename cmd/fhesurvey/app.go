// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/config"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/fhevm/mock"
	"github.com/luxfi/fhesurvey/logging"
	"github.com/luxfi/fhesurvey/relayer"
	"github.com/luxfi/fhesurvey/signature"
	"github.com/luxfi/fhesurvey/storage"
	"github.com/luxfi/fhesurvey/survey"
	"github.com/luxfi/geth/ethclient"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sdkFetchTimeout = 30 * time.Second

	// hardhatAccount0 is the first funded account of a fresh Hardhat node.
	hardhatAccount0 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

var errMissingPrivateKey = errors.New("private-key must be set outside local development")

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   log.Logger
	client   *ethclient.Client
	store    storage.Storage
	resolver *chain.Resolver
	session  *survey.Session
	orch     *survey.Orchestrator
	wallet   *signature.LocalSigner
	metrics  *http.Server
}

func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	logger, err := logging.New("fhesurvey", cfg.LoggingConfig(), os.Stderr)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	a.store, err = openStorage(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a.client, err = ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.RPCURL, err)
	}
	if cfg.MetricsAddr != "" {
		a.metrics = startMetricsServer(logger, cfg.MetricsAddr, registry, a.healthCheck)
	}

	a.wallet, err = loadWallet(cfg)
	if err != nil {
		return nil, err
	}

	// Development-node handles outlive the process so a later decrypt finds
	// what an earlier submit encrypted.
	mockRegistry, err := mock.OpenRegistry(ctx, a.store)
	if err != nil {
		return nil, fmt.Errorf("failed to open mock registry: %w", err)
	}

	ns := relayer.NewNamespace()
	injector := newInjector(ns, cfg.SDKURL)
	injector.Register(cfg.SDKURL, mock.SDKModule(mockRegistry, relayer.SepoliaConfig))
	loader := relayer.NewLoader(logger, ns, injector, cfg.LoaderConfig())
	bootstrap := relayer.NewBootstrap(logger, ns, loader, &relayer.InitOptions{})

	a.resolver = chain.NewResolver(logger, cfg.ResolverOptions())
	factory := fhevm.NewFactory(
		logger,
		a.resolver,
		fhevm.NewNodeProbe(logger, nil),
		bootstrap,
		mock.Builder(mockRegistry),
		fhevm.NewPublicKeyStorage(logger, a.store),
		fhevm.NewFactoryMetrics(registry),
	)
	a.session = survey.NewSession(logger, factory, survey.SessionConfig{
		Target:         chain.ProviderTarget(a.client),
		MockChains:     cfg.GetMockChains(),
		OnStatusChange: printStatus,
	})

	chainID, err := a.walletChainID(ctx)
	if err != nil {
		return nil, err
	}
	a.session.Switch(chainID, a.wallet)

	a.orch = survey.NewOrchestrator(
		logger,
		a.session,
		a.client,
		signature.NewManager(logger, a.store, cfg.SignatureDuration()),
		survey.NewOrchestratorMetrics(registry),
		cfg.OrchestratorConfig(),
	)
	return a, nil
}

// walletChainID asks the wallet node for its chain id, falling back to the
// local chain when allowed.
func (a *app) walletChainID(ctx context.Context) (uint64, error) {
	id, err := a.client.ChainID(ctx)
	if err == nil {
		return id.Uint64(), nil
	}
	if !a.cfg.WalletFallback {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	a.logger.Warn("Failed to get wallet chain id, using the local chain",
		"chainID", chain.LocalChainID,
		log.Err(err),
	)
	return chain.LocalChainID, nil
}

// healthCheck reports whether the wallet node answers.
func (a *app) healthCheck(ctx context.Context) error {
	_, err := a.client.ChainID(ctx)
	return err
}

func (a *app) Close() error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	if a.client != nil {
		a.client.Close()
	}
	if closer, ok := a.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func openStorage(path string) (storage.Storage, error) {
	if path == "" {
		return storage.NewMemoryStorage(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return storage.OpenSQLite(path)
}

func loadWallet(cfg config.Config) (*signature.LocalSigner, error) {
	key := cfg.PrivateKey
	if key == "" {
		if !cfg.LocalDev {
			return nil, errMissingPrivateKey
		}
		key = hardhatAccount0
	}
	return signature.NewLocalSignerFromHex(key)
}

// newInjector fetches http(s) SDK locations before running the registered
// module. Any other scheme runs the module directly.
func newInjector(ns *relayer.Namespace, sdkURL string) interface {
	relayer.Injector
	Register(url string, module relayer.Module)
} {
	u, err := url.Parse(sdkURL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return relayer.NewHTTPInjector(ns, &http.Client{Timeout: sdkFetchTimeout})
	}
	return relayer.NewModuleInjector(ns)
}

// startMetricsServer serves /metrics and a /health endpoint backed by check.
func startMetricsServer(
	logger log.Logger,
	addr string,
	gatherer prometheus.Gatherer,
	check func(context.Context) error,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", log.Err(err))
		}
	}()
	return server
}

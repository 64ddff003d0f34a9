// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"

	// Environment variable prefix. FHESURVEY_RPC_URL sets rpc-url.
	EnvPrefix = "FHESURVEY"

	// Logging
	LogLevelKey = "log-level"
	LogJSONKey  = "log-json"
	LogFileKey  = "log-file"

	// Chain and wallet
	RPCURLKey         = "rpc-url"
	PrivateKeyKey     = "private-key"
	LocalDevKey       = "local-dev"
	WalletFallbackKey = "wallet-fallback"
	MockChainsKey     = "mock-chains"
	ContractsKey      = "contracts"

	// Persistence
	StoragePathKey = "storage-path"

	// Relayer SDK
	SDKURLKey          = "sdk-url"
	SDKPollIntervalKey = "sdk-poll-interval"
	SDKMaxAttemptsKey  = "sdk-max-attempts"

	// Orchestrator
	SignatureDurationDaysKey = "signature-duration-days"
	RefreshDelayKey          = "refresh-delay"
	ReceiptTimeoutKey        = "receipt-timeout"

	MetricsAddrKey = "metrics-addr"
)

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"github.com/luxfi/fhesurvey/relayer"
	"github.com/luxfi/fhesurvey/signature"
	"github.com/luxfi/fhesurvey/survey"
	"github.com/spf13/pflag"
)

const (
	defaultLogLevel = "info"
	defaultRPCURL   = "http://localhost:8545"
)

// defaultContracts is the first deployment address of a fresh Hardhat node.
var defaultContracts = []string{"31337=0x5FbDB2315678afecb367f032c93F642f64180aa3"}

// AddFlags registers every configuration key on fs. Flags left unset fall
// back to the config file, then the environment, then the defaults.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "Path to a JSON or YAML config file")

	fs.String(LogLevelKey, defaultLogLevel, "Log level: debug, info, warn or error")
	fs.Bool(LogJSONKey, false, "Log JSON instead of console lines")
	fs.String(LogFileKey, "", "Also write logs to this file, rotated")

	fs.String(RPCURLKey, defaultRPCURL, "Wallet RPC endpoint")
	fs.String(PrivateKeyKey, "", "Hex private key of the wallet")
	fs.Bool(LocalDevKey, false, "Run in a local development context")
	fs.Bool(WalletFallbackKey, true, "Use the local chain when the wallet cannot report its chain id")
	fs.StringSlice(MockChainsKey, nil, "Extra development chains as chainID=rpcURL")
	fs.StringSlice(ContractsKey, defaultContracts, "Survey deployments as chainID=address[:name]")

	fs.String(StoragePathKey, "${HOME}/.fhesurvey/state.db", "SQLite file for keys, signatures and development-node handles; in memory when empty")

	fs.String(SDKURLKey, relayer.DefaultSDKURL, "Relayer SDK location")
	fs.Duration(SDKPollIntervalKey, relayer.DefaultPollInterval, "Interval between SDK availability checks")
	fs.Int(SDKMaxAttemptsKey, relayer.DefaultMaxAttempts, "SDK availability checks before giving up")

	fs.Uint64(SignatureDurationDaysKey, signature.DefaultDurationDays, "Validity of decryption signatures in days")
	fs.Duration(RefreshDelayKey, survey.DefaultRefreshDelay, "Pause between a confirmed submit and the refresh")
	fs.Duration(ReceiptTimeoutKey, survey.DefaultReceiptTimeout, "How long to wait for a transaction receipt")

	fs.String(MetricsAddrKey, "", "Serve Prometheus metrics on this address when set")
}

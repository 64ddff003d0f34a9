// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/logging"
	"github.com/luxfi/fhesurvey/relayer"
	"github.com/luxfi/fhesurvey/signature"
	"github.com/luxfi/fhesurvey/survey"
)

var (
	errMissingRPCURL    = errors.New("rpc-url must be set")
	errNegativeDuration = errors.New("durations must not be negative")
)

type Config struct {
	LogLevel string `mapstructure:"log-level" json:"log-level"`
	LogJSON  bool   `mapstructure:"log-json" json:"log-json"`
	LogFile  string `mapstructure:"log-file" json:"log-file"`

	RPCURL         string   `mapstructure:"rpc-url" json:"rpc-url"`
	PrivateKey     string   `mapstructure:"private-key" json:"-"`
	LocalDev       bool     `mapstructure:"local-dev" json:"local-dev"`
	WalletFallback bool     `mapstructure:"wallet-fallback" json:"wallet-fallback"`
	MockChains     []string `mapstructure:"mock-chains" json:"mock-chains"`
	Contracts      []string `mapstructure:"contracts" json:"contracts"`

	StoragePath string `mapstructure:"storage-path" json:"storage-path"`

	SDKURL          string        `mapstructure:"sdk-url" json:"sdk-url"`
	SDKPollInterval time.Duration `mapstructure:"sdk-poll-interval" json:"sdk-poll-interval"`
	SDKMaxAttempts  int           `mapstructure:"sdk-max-attempts" json:"sdk-max-attempts"`

	SignatureDurationDays uint64        `mapstructure:"signature-duration-days" json:"signature-duration-days"`
	RefreshDelay          time.Duration `mapstructure:"refresh-delay" json:"refresh-delay"`
	ReceiptTimeout        time.Duration `mapstructure:"receipt-timeout" json:"receipt-timeout"`

	MetricsAddr string `mapstructure:"metrics-addr" json:"metrics-addr"`

	// Parsed in Validate
	mockChains  chain.MockChains
	deployments survey.Deployments
}

// Validate checks the config and parses the chain and deployment tables.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.RPCURL == "" {
		return errMissingRPCURL
	}
	if _, err := url.ParseRequestURI(c.RPCURL); err != nil {
		return fmt.Errorf("invalid rpc-url: %w", err)
	}
	if c.SDKPollInterval < 0 || c.RefreshDelay < 0 || c.ReceiptTimeout < 0 {
		return errNegativeDuration
	}
	if c.SDKMaxAttempts < 0 {
		return fmt.Errorf("invalid sdk-max-attempts: %d", c.SDKMaxAttempts)
	}

	mocks, err := chain.ParseMockChains(c.MockChains)
	if err != nil {
		return fmt.Errorf("invalid mock-chains: %w", err)
	}
	deployments, err := survey.ParseDeployments(c.Contracts)
	if err != nil {
		return fmt.Errorf("invalid contracts: %w", err)
	}
	c.mockChains = mocks
	c.deployments = deployments
	return nil
}

func (c *Config) GetMockChains() chain.MockChains {
	return c.mockChains
}

func (c *Config) GetDeployments() survey.Deployments {
	return c.deployments
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level: c.LogLevel,
		JSON:  c.LogJSON,
		File:  c.LogFile,
	}
}

func (c *Config) LoaderConfig() relayer.LoaderConfig {
	return relayer.LoaderConfig{
		URL:          c.SDKURL,
		PollInterval: c.SDKPollInterval,
		MaxAttempts:  c.SDKMaxAttempts,
	}
}

func (c *Config) ResolverOptions() chain.Options {
	return chain.Options{
		LocalDev:       c.LocalDev,
		WalletFallback: c.WalletFallback,
	}
}

func (c *Config) OrchestratorConfig() survey.Config {
	return survey.Config{
		Deployments:    c.deployments,
		LocalDev:       c.LocalDev,
		RefreshDelay:   c.RefreshDelay,
		ReceiptTimeout: c.ReceiptTimeout,
	}
}

// SignatureDuration returns the configured validity, or the default when
// unset.
func (c *Config) SignatureDuration() uint64 {
	if c.SignatureDurationDays == 0 {
		return signature.DefaultDurationDays
	}
	return c.SignatureDurationDays
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildViper binds fs and the FHESURVEY_ environment. The config file is
// optional.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if !v.IsSet(ConfigFileKey) || v.GetString(ConfigFileKey) == "" {
		return v, nil
	}
	filename := getExpandedPath(v, ConfigFileKey)
	v.SetConfigFile(filename)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	cfg.StoragePath = getExpandedPath(v, StoragePathKey)
	cfg.LogFile = getExpandedPath(v, LogFileKey)
	return cfg, nil
}

// getExpandedPath gets the string in viper corresponding to [key] and expands
// any variables using the OS env.
func getExpandedPath(v *viper.Viper, key string) string {
	return os.Expand(
		v.GetString(key),
		func(strVar string) string {
			return os.Getenv(strVar)
		},
	)
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/fhesurvey/config"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, closeApp := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd returns the root command and a function releasing whatever the
// executed subcommand opened.
func newRootCmd() (*cobra.Command, func() error) {
	var a *app
	rootCmd := &cobra.Command{
		Use:   "fhesurvey",
		Short: "Encrypted survey client",
		Long: `fhesurvey answers an encrypted survey contract. Answers are encrypted
client side, stored on chain as ciphertext handles and decrypted only for
the signer that submitted them.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.BuildViper(cmd.Flags())
			if err != nil {
				return fmt.Errorf("couldn't configure flags: %w", err)
			}
			cfg, err := config.NewConfig(v)
			if err != nil {
				return fmt.Errorf("couldn't build config: %w", err)
			}
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
	}
	config.AddFlags(rootCmd.PersistentFlags())

	appFn := func() *app { return a }
	rootCmd.AddCommand(
		newResolveCmd(appFn),
		newInstanceCmd(appFn),
		newRefreshCmd(appFn),
		newSubmitCmd(appFn),
		newDecryptCmd(appFn),
		newTalliesCmd(appFn),
		newResetCmd(appFn),
	)
	closeApp := func() error {
		if a == nil {
			return nil
		}
		return a.Close()
	}
	return rootCmd, closeApp
}

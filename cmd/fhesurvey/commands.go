// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strconv"

	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/survey"
	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"
)

func newResolveCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show how the wallet chain resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := a()
			res, err := app.resolver.Resolve(cmd.Context(), chain.ProviderTarget(app.client), app.cfg.GetMockChains())
			if err != nil {
				return err
			}
			printResolution(res)
			return nil
		},
	}
}

func newInstanceCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "instance",
		Short: "Build an encryption instance for the wallet chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inst, err := a().session.EnsureInstance(cmd.Context())
			if err != nil {
				return err
			}
			printInstance(a().session.Identity(), inst)
			return nil
		},
	}
}

func newRefreshCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Read the stored answer handles of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch := a().orch
			res := orch.Refresh(cmd.Context())
			printSnapshot(orch.Snapshot())
			return printResult(res)
		},
	}
}

func newSubmitCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <question> <value>",
		Short: "Encrypt and submit an answer",
		Long:  "Encrypt value and submit it as the answer to question 1, 2 or 3.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQuestion(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			orch := a().orch
			res := orch.Submit(cmd.Context(), id, value)
			printSnapshot(orch.Snapshot())
			return printResult(res)
		},
	}
}

func newDecryptCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt every answer of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch := a().orch
			if res := orch.Refresh(cmd.Context()); res.Outcome != survey.OutcomeCompleted {
				return printResult(res)
			}
			res := orch.Decrypt(cmd.Context())
			printSnapshot(orch.Snapshot())
			return printResult(res)
		},
	}
}

func newTalliesCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tallies",
		Short: "Show the encrypted tally handles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contract, err := a().orch.Contract()
			if err != nil {
				return err
			}
			yes, no, err := contract.GetTallies(cmd.Context())
			if err != nil {
				return err
			}
			printTallies(contract.Address(), yes, no)
			return nil
		},
	}
}

func newResetCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user> [question]",
		Short: "Clear answers of a user (contract owner only)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid user address %q", args[0])
			}
			user := common.HexToAddress(args[0])

			app := a()
			contract, err := app.orch.Contract()
			if err != nil {
				return err
			}
			chainID := app.session.Identity().ChainID
			if len(args) == 1 {
				_, err = contract.ResetAllAnswers(cmd.Context(), app.wallet, chainID, user)
			} else {
				var id survey.QuestionID
				if id, err = parseQuestion(args[1]); err != nil {
					return err
				}
				_, err = contract.ResetAnswer(cmd.Context(), app.wallet, chainID, user, id)
			}
			if err != nil {
				return err
			}
			printOK(fmt.Sprintf("Answers of %s reset", user))
			return nil
		},
	}
}

// parseQuestion maps the 1-based question number shown to users to its id.
func parseQuestion(s string) (survey.QuestionID, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n == 0 || !survey.QuestionID(n-1).Valid() {
		return 0, fmt.Errorf("invalid question %q: expected 1, 2 or 3", s)
	}
	return survey.QuestionID(n - 1), nil
}

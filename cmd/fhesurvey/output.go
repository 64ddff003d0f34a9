// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/survey"
	"github.com/luxfi/geth/common"
)

var (
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
	statusColor = color.New(color.FgCyan)
)

func printStatus(s fhevm.Status) {
	statusColor.Printf("  [%s]\n", s)
}

func printOK(msg string) {
	okColor.Println(msg)
}

func printResolution(res chain.ChainResolution) {
	labelColor.Print("Chain:   ")
	fmt.Println(res.ChainID)
	labelColor.Print("Path:    ")
	if res.IsMock {
		fmt.Printf("mock (%s)\n", res.RPCURL)
	} else {
		fmt.Println("production")
	}
}

func printInstance(id fhesurvey.SessionIdentity, inst fhevm.Instance) {
	labelColor.Print("Session: ")
	fmt.Println(id)
	labelColor.Print("Key:     ")
	fmt.Printf("%d bytes\n", len(inst.PublicKey()))
	okColor.Println("Instance ready")
}

func printSnapshot(s survey.Snapshot) {
	if s.ContractAddress != nil {
		labelColor.Print("Contract: ")
		fmt.Printf("%s (chain %d)\n", s.ContractAddress.Hex(), s.ChainID)
	}
	for i, q := range s.Questions {
		labelColor.Printf("%d. %s\n", i+1, q.Text)
		switch {
		case q.Handle == nil:
			fmt.Println("   not answered")
		case q.Decrypted != nil:
			fmt.Printf("   %s = %s\n", q.Handle.Hex(), q.Decrypted.Dec())
		default:
			fmt.Printf("   %s\n", q.Handle.Hex())
		}
	}
}

func printTallies(addr common.Address, yes, no common.Hash) {
	labelColor.Print("Contract: ")
	fmt.Println(addr.Hex())
	labelColor.Print("Yes:      ")
	fmt.Println(yes.Hex())
	labelColor.Print("No:       ")
	fmt.Println(no.Hex())
}

// printResult prints the operation message and returns an error for any
// outcome other than completed.
func printResult(res survey.Result) error {
	switch res.Outcome {
	case survey.OutcomeCompleted:
		okColor.Println(res.Message)
		return nil
	case survey.OutcomeCancelled, survey.OutcomeRejected:
		warnColor.Println(res.Message)
	default:
		errColor.Println(res.Message)
	}
	if res.Err != nil {
		return res.Err
	}
	return errors.New(res.Message)
}

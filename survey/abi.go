// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"strings"

	"github.com/luxfi/geth/accounts/abi"
)

const (
	methodGetMyAnswers    = "getMyAnswers"
	methodGetUserAnswers  = "getUserAnswers"
	methodGetTallies      = "getTallies"
	methodHasAnswered     = "hasAnswered"
	methodSubmitAnswer    = "submitAnswer"
	methodResetAnswer     = "resetAnswer"
	methodResetAllAnswers = "resetAllAnswers"
)

// Reverts raised by the input verifier when a proof does not match its
// handles. The error is not part of the survey ABI.
var invalidProofSelector = [4]byte{0x7a, 0x47, 0xc9, 0xa2}

const surveyABIJSON = `[
	{"type":"function","name":"getMyAnswers","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"idNumberEncrypted","type":"bytes32"},{"name":"bankPasswordEncrypted","type":"bytes32"},{"name":"ageEncrypted","type":"bytes32"}]},
	{"type":"function","name":"getUserAnswers","stateMutability":"view","inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"idNumberEncrypted","type":"bytes32"},{"name":"bankPasswordEncrypted","type":"bytes32"},{"name":"ageEncrypted","type":"bytes32"}]},
	{"type":"function","name":"getTallies","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"yes","type":"bytes32"},{"name":"no","type":"bytes32"}]},
	{"type":"function","name":"hasAnswered","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"uint8"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"submitAnswer","stateMutability":"nonpayable",
	 "inputs":[{"name":"questionId","type":"uint8"},{"name":"encryptedAnswer","type":"bytes32"},{"name":"inputProof","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"resetAnswer","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"questionId","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"resetAllAnswers","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"}],"outputs":[]}
]`

// SurveyABI is the parsed interface of the encrypted survey contract.
var SurveyABI = mustParseABI(surveyABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

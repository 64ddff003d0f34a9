// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/rpc"
)

const (
	reasonAlreadyAnswered   = "Already answered"
	reasonInvalidQuestionID = "Invalid question ID"
	revertedMarker          = "execution reverted"
)

// revertData extracts the revert payload carried by an RPC error.
func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch d := dataErr.ErrorData().(type) {
	case string:
		b, err := hexutil.Decode(d)
		return b, err == nil
	case []byte:
		return d, true
	default:
		return nil, false
	}
}

// translateError maps a submit failure on question id to a coded error whose
// message can be shown as is.
func translateError(err error, id QuestionID) *fhesurvey.Error {
	if err == nil {
		return nil
	}
	if fhesurvey.IsCancelled(err) {
		return fhesurvey.NewError(fhesurvey.CodeCancelled, fhesurvey.ErrCancelled.Message, err)
	}
	var coded *fhesurvey.Error
	if errors.As(err, &coded) {
		return coded
	}

	if data, ok := revertData(err); ok && len(data) >= 4 {
		if bytes.Equal(data[:4], invalidProofSelector[:]) {
			return fhesurvey.NewError(fhesurvey.CodeInvalidProof,
				"FHEVM error: Invalid input proof or encrypted value. This may be due to a FHEVM configuration issue, invalid encryption parameters or a network connectivity issue. Please try again or check FHEVM status.",
				err,
			)
		}
		if reason, uerr := abi.UnpackRevert(data); uerr == nil {
			if coded := classifyReason(reason, id, err); coded != nil {
				return coded
			}
			return fhesurvey.NewError(fhesurvey.CodeReverted, "Transaction reverted: "+reason, err)
		}
		if abiErr, lerr := SurveyABI.ErrorByID([4]byte(data[:4])); lerr == nil {
			return fhesurvey.NewError(fhesurvey.CodeReverted, "Contract error: "+abiErr.Name, err)
		}
		return fhesurvey.NewError(fhesurvey.CodeReverted,
			fmt.Sprintf("Transaction reverted. Error selector: %s", hexutil.Encode(data[:4])),
			err,
		)
	}

	msg := err.Error()
	if coded := classifyReason(msg, id, err); coded != nil {
		return coded
	}
	if strings.Contains(msg, revertedMarker) {
		return fhesurvey.NewError(fhesurvey.CodeReverted,
			"Transaction reverted. This may be due to an already answered question, an invalid input proof or a FHEVM configuration issue.",
			err,
		)
	}
	return fhesurvey.NewError(fhesurvey.CodeNetwork, "Network error: "+msg, err)
}

func classifyReason(reason string, id QuestionID, cause error) *fhesurvey.Error {
	switch {
	case strings.Contains(reason, reasonAlreadyAnswered):
		return alreadyAnswered(id, cause)
	case strings.Contains(reason, reasonInvalidQuestionID):
		return invalidQuestionID(id, cause)
	default:
		return nil
	}
}

func alreadyAnswered(id QuestionID, cause error) *fhesurvey.Error {
	return fhesurvey.NewError(fhesurvey.CodeAlreadyAnswered,
		fmt.Sprintf("You have already answered question %d. Each question can only be answered once.", uint(id)+1),
		cause,
	)
}

func invalidQuestionID(id QuestionID, cause error) *fhesurvey.Error {
	return fhesurvey.NewError(fhesurvey.CodeInvalidQuestionID,
		fmt.Sprintf("Invalid question ID: %d. Please try again.", uint8(id)),
		cause,
	)
}

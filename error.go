// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhesurvey

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code string

const (
	// Environment resolution
	CodeChainID             Code = "CHAIN_ID_ERROR"
	CodeWeb3ClientVersion   Code = "WEB3_CLIENTVERSION_ERROR"
	CodeMockChainNoMetadata Code = "FHEVM_MOCK_CHAIN_NO_METADATA"

	// Backend bootstrap
	CodeSDKLoad        Code = "SDK_LOAD_ERROR"
	CodeSDKLoadTimeout Code = "SDK_LOAD_TIMEOUT"
	CodeSDKInvalid     Code = "SDK_INVALID"
	CodeSDKInit        Code = "SDK_INIT_FAILED"
	CodeInvalidACL     Code = "INVALID_ACL_ADDRESS"

	CodeCancelled Code = "CANCELLED"

	// Authorization
	CodeSignatureUnavailable Code = "SIGNATURE_UNAVAILABLE"

	// Survey interaction
	CodeAlreadyAnswered   Code = "ALREADY_ANSWERED"
	CodeInvalidQuestionID Code = "INVALID_QUESTION_ID"
	CodeInvalidValue      Code = "INVALID_VALUE"
	CodeInvalidProof      Code = "INVALID_INPUT_PROOF"
	CodeReverted          Code = "TX_REVERTED"
	CodeReceiptMissing    Code = "RECEIPT_MISSING"
	CodeNetwork           Code = "NETWORK_ERROR"
	CodeMissingHandles    Code = "MISSING_HANDLES"
	CodeNotReady          Code = "NOT_READY"
	CodeStale             Code = "STALE_SESSION"
	CodeBusy              Code = "OPERATION_IN_PROGRESS"
)

// Error is a coded fhesurvey error. Two errors match under errors.Is when
// their codes are equal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// ErrCancelled is returned when an operation observes a cancellation request.
var ErrCancelled = &Error{Code: CodeCancelled, Message: "FHEVM operation was cancelled"}

// NewError returns an Error with the given code wrapping cause (which may be nil).
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Errorf returns an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCancelled reports whether err is a cancellation, either an explicit
// ErrCancelled or a context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// CheckCancelled returns ErrCancelled if ctx has been cancelled.
func CheckCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return NewError(CodeCancelled, ErrCancelled.Message, context.Cause(ctx))
	}
	return nil
}

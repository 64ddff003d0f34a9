// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// QuestionID indexes the answers stored by the survey contract.
type QuestionID uint8

const (
	QuestionIDNumber QuestionID = iota
	QuestionBankPassword
	QuestionAge

	numQuestions = 3
)

var questionTexts = [numQuestions]string{
	QuestionIDNumber:     "What is your ID number?",
	QuestionBankPassword: "What is your bank card password?",
	QuestionAge:          "What is your age?",
}

// Valid reports whether id is known to the contract.
func (id QuestionID) Valid() bool {
	return id < numQuestions
}

func (id QuestionID) Text() string {
	if !id.Valid() {
		return fmt.Sprintf("question %d", uint8(id))
	}
	return questionTexts[id]
}

// QuestionState is the local view of one answer. Decrypted is only set for
// the current Handle.
type QuestionState struct {
	ID        QuestionID
	Text      string
	Handle    *common.Hash
	Decrypted *uint256.Int
}

func (q QuestionState) clone() QuestionState {
	if q.Handle != nil {
		h := *q.Handle
		q.Handle = &h
	}
	if q.Decrypted != nil {
		q.Decrypted = q.Decrypted.Clone()
	}
	return q
}

// ClearTallies holds the decrypted answers of the current user.
type ClearTallies struct {
	IDNumber     *uint256.Int
	BankPassword *uint256.Int
	Age          *uint256.Int
}

func newQuestions() []QuestionState {
	qs := make([]QuestionState, numQuestions)
	for i := range qs {
		id := QuestionID(i)
		qs[i] = QuestionState{ID: id, Text: id.Text()}
	}
	return qs
}

// normalizeHandle maps the zero word to "not yet answered".
func normalizeHandle(h common.Hash) *common.Hash {
	if h == (common.Hash{}) {
		return nil
	}
	return &h
}

func sameHandle(a, b *common.Hash) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

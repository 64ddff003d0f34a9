// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/utils"
	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
)

const (
	// The max base fee is this multiple of the current base fee.
	defaultBaseFeeFactor = 3

	DefaultReceiptTimeout = 60 * time.Second
)

// ChainClient is the subset of ethclient.Client used to talk to the survey
// contract.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner signs transactions sent to the contract.
type TxSigner interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Answers holds the raw handles stored for one user, zero when unanswered.
type Answers [numQuestions]common.Hash

// Contract binds the survey ABI to one deployment.
type Contract struct {
	logger         log.Logger
	client         ChainClient
	address        common.Address
	receiptTimeout time.Duration
}

func NewContract(
	logger log.Logger,
	client ChainClient,
	address common.Address,
	receiptTimeout time.Duration,
) *Contract {
	if receiptTimeout <= 0 {
		receiptTimeout = DefaultReceiptTimeout
	}
	return &Contract{
		logger:         logger,
		client:         client,
		address:        address,
		receiptTimeout: receiptTimeout,
	}
}

func (c *Contract) Address() common.Address {
	return c.address
}

// GetMyAnswers reads the answers of from. It tries the ABI call first, then
// getUserAnswers, then a raw decode of the getMyAnswers return words.
func (c *Contract) GetMyAnswers(ctx context.Context, from common.Address) (Answers, error) {
	raw, callErr := c.call(ctx, from, methodGetMyAnswers)
	if callErr == nil {
		answers, err := unpackAnswers(methodGetMyAnswers, raw)
		if err == nil {
			return answers, nil
		}
		c.logger.Warn("Failed to decode getMyAnswers, trying getUserAnswers",
			"user", from,
			log.Err(err),
		)
	} else {
		c.logger.Warn("getMyAnswers call failed, trying getUserAnswers",
			"user", from,
			log.Err(callErr),
		)
	}

	answers, err := c.GetUserAnswers(ctx, from)
	if err == nil {
		return answers, nil
	}
	if ctx.Err() != nil {
		return Answers{}, err
	}

	if callErr == nil && len(raw) >= numQuestions*common.HashLength {
		for i := range answers {
			answers[i] = common.BytesToHash(raw[i*common.HashLength : (i+1)*common.HashLength])
		}
		return answers, nil
	}
	if callErr != nil {
		return Answers{}, fmt.Errorf("failed to read answers: %w", callErr)
	}
	return Answers{}, fmt.Errorf("failed to read answers: %w", err)
}

func (c *Contract) GetUserAnswers(ctx context.Context, user common.Address) (Answers, error) {
	raw, err := c.call(ctx, common.Address{}, methodGetUserAnswers, user)
	if err != nil {
		return Answers{}, err
	}
	return unpackAnswers(methodGetUserAnswers, raw)
}

// GetTallies returns the aggregate yes and no handles.
func (c *Contract) GetTallies(ctx context.Context) (yes, no common.Hash, err error) {
	raw, err := c.call(ctx, common.Address{}, methodGetTallies)
	if err != nil {
		return common.Hash{}, common.Hash{}, err
	}
	out, err := SurveyABI.Unpack(methodGetTallies, raw)
	if err != nil {
		return common.Hash{}, common.Hash{}, fmt.Errorf("failed to decode getTallies: %w", err)
	}
	if len(out) != 2 {
		return common.Hash{}, common.Hash{}, fmt.Errorf("getTallies returned %d values", len(out))
	}
	yesWord, ok1 := out[0].([32]byte)
	noWord, ok2 := out[1].([32]byte)
	if !ok1 || !ok2 {
		return common.Hash{}, common.Hash{}, fmt.Errorf("getTallies returned unexpected types")
	}
	return yesWord, noWord, nil
}

func (c *Contract) HasAnswered(ctx context.Context, user common.Address, id QuestionID) (bool, error) {
	raw, err := c.call(ctx, common.Address{}, methodHasAnswered, user, uint8(id))
	if err != nil {
		return false, err
	}
	out, err := SurveyABI.Unpack(methodHasAnswered, raw)
	if err != nil {
		return false, fmt.Errorf("failed to decode hasAnswered: %w", err)
	}
	answered, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("hasAnswered returned %T", out[0])
	}
	return answered, nil
}

// DryRunSubmit runs submitAnswer as a call so a revert surfaces before a
// transaction is paid for.
func (c *Contract) DryRunSubmit(
	ctx context.Context,
	from common.Address,
	id QuestionID,
	handle common.Hash,
	proof []byte,
) error {
	_, err := c.call(ctx, from, methodSubmitAnswer, uint8(id), [32]byte(handle), proof)
	return err
}

func (c *Contract) SubmitAnswer(
	ctx context.Context,
	signer TxSigner,
	chainID uint64,
	id QuestionID,
	handle common.Hash,
	proof []byte,
) (*types.Receipt, error) {
	data, err := SurveyABI.Pack(methodSubmitAnswer, uint8(id), [32]byte(handle), proof)
	if err != nil {
		return nil, err
	}
	return c.sendTx(ctx, signer, chainID, data)
}

// ResetAnswer clears the answer of user to id. Only the contract owner may
// call it.
func (c *Contract) ResetAnswer(
	ctx context.Context,
	signer TxSigner,
	chainID uint64,
	user common.Address,
	id QuestionID,
) (*types.Receipt, error) {
	data, err := SurveyABI.Pack(methodResetAnswer, user, uint8(id))
	if err != nil {
		return nil, err
	}
	return c.sendTx(ctx, signer, chainID, data)
}

func (c *Contract) ResetAllAnswers(
	ctx context.Context,
	signer TxSigner,
	chainID uint64,
	user common.Address,
) (*types.Receipt, error) {
	data, err := SurveyABI.Pack(methodResetAllAnswers, user)
	if err != nil {
		return nil, err
	}
	return c.sendTx(ctx, signer, chainID, data)
}

func (c *Contract) call(ctx context.Context, from common.Address, method string, args ...interface{}) ([]byte, error) {
	data, err := SurveyABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	msg := ethereum.CallMsg{
		From: from,
		To:   &c.address,
		Data: data,
	}
	return c.client.CallContract(ctx, msg, nil)
}

// sendTx signs and broadcasts a dynamic fee transaction carrying data, then
// waits for its receipt. The max fee is the current base fee times
// defaultBaseFeeFactor plus the suggested tip.
func (c *Contract) sendTx(ctx context.Context, signer TxSigner, chainID uint64, data []byte) (*types.Receipt, error) {
	from := signer.Address()
	evmChainID := new(big.Int).SetUint64(chainID)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	gasTipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head: %w", err)
	}
	gasFeeCap := new(big.Int).Set(gasTipCap)
	if head.BaseFee != nil {
		maxBaseFee := new(big.Int).Mul(head.BaseFee, big.NewInt(defaultBaseFeeFactor))
		gasFeeCap.Add(gasFeeCap, maxBaseFee)
	}
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &c.address,
		GasFeeCap: gasFeeCap,
		GasTipCap: gasTipCap,
		Data:      data,
	})
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   evmChainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gas,
		To:        &c.address,
		Data:      data,
	})
	signedTx, err := signer.SignTx(ctx, tx, evmChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	c.logger.Info("Sending transaction",
		"txID", signedTx.Hash(),
		"nonce", nonce,
		"gas", gas,
	)
	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, err
	}

	receipt, err := c.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fhesurvey.Errorf(fhesurvey.CodeReverted, "transaction %s reverted in block %s", signedTx.Hash(), receipt.BlockNumber)
	}
	c.logger.Info("Transaction confirmed",
		"txID", signedTx.Hash(),
		"block", receipt.BlockNumber,
	)
	return receipt, nil
}

func (c *Contract) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	operation := func() (err error) {
		receipt, err = c.client.TransactionReceipt(ctx, txHash)
		return err
	}
	err := utils.WithRetriesTimeout(ctx, c.logger, operation, c.receiptTimeout, "waitForReceipt")
	if err != nil {
		if cerr := fhesurvey.CheckCancelled(ctx); cerr != nil {
			return nil, cerr
		}
		c.logger.Error("Failed to get transaction receipt",
			"txID", txHash,
			log.Err(err),
		)
		return nil, fhesurvey.NewError(fhesurvey.CodeReceiptMissing, fmt.Sprintf("no receipt for transaction %s", txHash), err)
	}
	if receipt == nil {
		return nil, fhesurvey.Errorf(fhesurvey.CodeReceiptMissing, "no receipt for transaction %s", txHash)
	}
	return receipt, nil
}

func unpackAnswers(method string, raw []byte) (Answers, error) {
	out, err := SurveyABI.Unpack(method, raw)
	if err != nil {
		return Answers{}, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	if len(out) != numQuestions {
		return Answers{}, fmt.Errorf("%s returned %d values", method, len(out))
	}
	var answers Answers
	for i, v := range out {
		word, ok := v.([32]byte)
		if !ok {
			return Answers{}, fmt.Errorf("%s returned %T", method, v)
		}
		answers[i] = word
	}
	return answers, nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package survey drives the encrypted survey: submitting encrypted answers,
// reading back their handles and decrypting them for the user who wrote
// them.
package survey

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/signature"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
)

const DefaultRefreshDelay = 500 * time.Millisecond

type Operation string

const (
	OpRefresh Operation = "refresh"
	OpSubmit  Operation = "submit"
	OpDecrypt Operation = "decrypt"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
	// OutcomeRejected is returned when another operation was running. No
	// state was touched.
	OutcomeRejected Outcome = "rejected"
)

// Result is the terminal state of one operation. Message is meant for the
// user; Err carries the coded cause for failures and cancellations.
type Result struct {
	Outcome Outcome
	Message string
	Err     error
}

func (r Result) Code() fhesurvey.Code {
	return fhesurvey.CodeOf(r.Err)
}

// Snapshot is a copy of the orchestrator state.
type Snapshot struct {
	ChainID         uint64
	ContractAddress *common.Address
	Questions       []QuestionState
	ClearTallies    *ClearTallies
	Refreshing      bool
	Submitting      bool
	Decrypting      bool
	Message         string
}

type Config struct {
	Deployments    Deployments
	LocalDev       bool
	RefreshDelay   time.Duration
	ReceiptTimeout time.Duration
}

// captured is the identity an operation started under.
type captured struct {
	contract common.Address
	identity fhesurvey.SessionIdentity
}

// Orchestrator runs one refresh, submit or decrypt at a time against the
// live session and publishes the resulting state.
type Orchestrator struct {
	logger     log.Logger
	session    *Session
	client     ChainClient
	signatures *signature.Manager
	metrics    *OrchestratorMetrics
	config     Config

	running atomic.Bool

	lock   sync.Mutex
	active Operation
	// loaded is the identity questions and clearTallies belong to.
	loaded       captured
	questions    []QuestionState
	clearTallies *ClearTallies
	message      string

	subLock     sync.Mutex
	subscribers map[uint64]chan Snapshot
	nextSub     uint64
}

func NewOrchestrator(
	logger log.Logger,
	session *Session,
	client ChainClient,
	signatures *signature.Manager,
	metrics *OrchestratorMetrics,
	config Config,
) *Orchestrator {
	if config.RefreshDelay < 0 {
		config.RefreshDelay = 0
	}
	return &Orchestrator{
		logger:      logger,
		session:     session,
		client:      client,
		signatures:  signatures,
		metrics:     metrics,
		config:      config,
		questions:   newQuestions(),
		subscribers: make(map[uint64]chan Snapshot),
	}
}

// Refresh reads the handles stored for the current signer.
func (o *Orchestrator) Refresh(ctx context.Context) Result {
	return o.run(ctx, OpRefresh, func(ctx context.Context, opID string) Result {
		res := o.refresh(ctx, opID)
		if res.Outcome != OutcomeCompleted {
			o.setMessage(res.Message)
		}
		return res
	})
}

// Submit encrypts value and stores it as the answer to question id.
func (o *Orchestrator) Submit(ctx context.Context, id QuestionID, value int64) Result {
	return o.run(ctx, OpSubmit, func(ctx context.Context, opID string) Result {
		res := o.submit(ctx, opID, id, value)
		o.setMessage(res.Message)
		return res
	})
}

// Decrypt decrypts every answered question in a single request.
func (o *Orchestrator) Decrypt(ctx context.Context) Result {
	return o.run(ctx, OpDecrypt, func(ctx context.Context, opID string) Result {
		res := o.decrypt(ctx, opID)
		o.setMessage(res.Message)
		return res
	})
}

// Contract returns a binding to the deployment of the current session.
func (o *Orchestrator) Contract() (*Contract, error) {
	addr, ok := o.currentContract()
	if !ok {
		return nil, notDeployed(o.session.Identity().ChainID)
	}
	return NewContract(o.logger, o.client, addr, o.config.ReceiptTimeout), nil
}

func (o *Orchestrator) run(
	ctx context.Context,
	op Operation,
	fn func(ctx context.Context, opID string) Result,
) Result {
	if !o.running.CompareAndSwap(false, true) {
		o.lock.Lock()
		active := o.active
		o.lock.Unlock()
		if active == "" {
			active = "another operation"
		}

		msg := fmt.Sprintf("Cannot %s while %s is in progress", op, active)
		o.logger.Debug("Rejected operation",
			"operation", op,
			"active", active,
		)
		res := Result{
			Outcome: OutcomeRejected,
			Message: msg,
			Err:     fhesurvey.Errorf(fhesurvey.CodeBusy, "%s", msg),
		}
		o.metrics.observe(op, res, 0)
		return res
	}

	o.lock.Lock()
	o.active = op
	o.lock.Unlock()
	o.publish()

	defer func() {
		o.lock.Lock()
		o.active = ""
		o.lock.Unlock()
		o.running.Store(false)
		o.publish()
	}()

	opID := uuid.NewString()
	start := time.Now()
	o.logger.Debug("Starting operation",
		"operation", op,
		"opID", opID,
	)

	res := fn(ctx, opID)

	o.metrics.observe(op, res, float64(time.Since(start).Milliseconds()))
	if res.Err != nil {
		o.logger.Info("Operation finished",
			"operation", op,
			"opID", opID,
			"outcome", res.Outcome,
			log.Err(res.Err),
		)
	} else {
		o.logger.Info("Operation finished",
			"operation", op,
			"opID", opID,
			"outcome", res.Outcome,
		)
	}
	return res
}

func (o *Orchestrator) refresh(ctx context.Context, opID string) Result {
	c, _, errRes := o.capture()
	if errRes != nil {
		return *errRes
	}
	return o.refreshAs(ctx, opID, c)
}

// refreshAs reads the answers of the signer captured in c and applies them
// only while c still matches the live session.
func (o *Orchestrator) refreshAs(ctx context.Context, opID string, c captured) Result {
	contract := NewContract(o.logger, o.client, c.contract, o.config.ReceiptTimeout)
	answers, err := contract.GetMyAnswers(ctx, c.identity.SignerAddress)
	if err != nil {
		if ctx.Err() != nil {
			return cancelledByContext(ctx, "Refresh")
		}
		o.logger.Warn("Failed to refresh answers",
			"opID", opID,
			"contract", c.contract,
			log.Err(err),
		)
		return failed(fhesurvey.NewError(fhesurvey.CodeNetwork, "Failed to refresh answers: "+err.Error(), err))
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Refresh", reason)
	}

	o.applyAnswers(c, answers)
	return completed("Answers refreshed")
}

func (o *Orchestrator) submit(ctx context.Context, opID string, id QuestionID, value int64) Result {
	c, wallet, errRes := o.capture()
	if errRes != nil {
		return *errRes
	}
	if value < 0 || value > math.MaxUint32 {
		return failed(fhesurvey.Errorf(fhesurvey.CodeInvalidValue, "Please enter a valid number (0-4294967295)"))
	}
	if !id.Valid() {
		return failed(invalidQuestionID(id, nil))
	}

	o.setMessage(fmt.Sprintf("Starting to submit question %d: %s...", id+1, id.Text()))
	inst, err := o.session.EnsureInstance(ctx)
	if err != nil {
		return o.submitFailed(ctx, opID, c, id, err)
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Transaction", reason)
	}

	// Encryption is costly; let other goroutines publish first.
	runtime.Gosched()
	o.setMessage(fmt.Sprintf("Encrypting answer %d (Question %d: %s)...", value, id+1, id.Text()))
	enc, err := inst.CreateEncryptedInput(c.contract, c.identity.SignerAddress).
		Add32(uint32(value)).
		Encrypt(ctx)
	if err != nil {
		return o.submitFailed(ctx, opID, c, id, err)
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Transaction", reason)
	}
	if len(enc.Handles) == 0 || len(enc.InputProof) == 0 {
		return o.submitFailed(ctx, opID, c, id,
			fhesurvey.Errorf(fhesurvey.CodeMissingHandles, "Encryption returned no handle or input proof"),
		)
	}
	handle := enc.Handles[0]

	o.setMessage("Submitting encrypted answer to contract...")
	contract := NewContract(o.logger, o.client, c.contract, o.config.ReceiptTimeout)
	if err := contract.DryRunSubmit(ctx, c.identity.SignerAddress, id, handle, enc.InputProof); err != nil {
		return o.submitFailed(ctx, opID, c, id, err)
	}
	answered, err := contract.HasAnswered(ctx, c.identity.SignerAddress, id)
	switch {
	case err != nil:
		o.logger.Warn("Failed to check hasAnswered, proceeding",
			"opID", opID,
			log.Err(err),
		)
	case answered:
		return failed(alreadyAnswered(id, nil))
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Transaction", reason)
	}

	receipt, err := contract.SubmitAnswer(ctx, wallet, c.identity.ChainID, id, handle, enc.InputProof)
	if err != nil {
		return o.submitFailed(ctx, opID, c, id, err)
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Transaction", reason)
	}
	o.logger.Info("Answer submitted",
		"opID", opID,
		"question", uint8(id),
		"txID", receipt.TxHash,
		"block", receipt.BlockNumber,
	)

	o.setMessage("Submit successful! Refreshing ciphertext...")
	if err := sleep(ctx, o.config.RefreshDelay); err != nil {
		return cancelledByContext(ctx, "Transaction")
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Transaction", reason)
	}
	res := o.refreshAs(ctx, opID, c)
	if reason := o.staleReason(c); reason != "" {
		return stale("Transaction", reason)
	}
	if res.Outcome != OutcomeCompleted {
		return Result{
			Outcome: OutcomeCompleted,
			Message: fmt.Sprintf("Question %d answer submitted, but failed to refresh ciphertext. Please refresh manually.", id+1),
			Err:     res.Err,
		}
	}
	return completed(fmt.Sprintf("Question %d answer submitted, ciphertext updated!", id+1))
}

// submitFailed translates err and refreshes in case the transaction landed
// anyway.
func (o *Orchestrator) submitFailed(ctx context.Context, opID string, c captured, id QuestionID, err error) Result {
	coded := translateError(err, id)
	if coded.Code == fhesurvey.CodeCancelled {
		return cancelled("Transaction cancelled", coded)
	}
	o.logger.Warn("Submit failed",
		"opID", opID,
		"question", uint8(id),
		"code", coded.Code,
		log.Err(err),
	)
	if ctx.Err() == nil && o.staleReason(c) == "" {
		if res := o.refreshAs(ctx, opID, c); res.Outcome != OutcomeCompleted {
			o.logger.Debug("Refresh after failed submit did not complete",
				"opID", opID,
				"outcome", res.Outcome,
			)
		}
	}
	return failed(coded)
}

func (o *Orchestrator) decrypt(ctx context.Context, opID string) Result {
	c, wallet, errRes := o.capture()
	if errRes != nil {
		return *errRes
	}

	o.lock.Lock()
	pairs := make([]fhevm.HandleContractPair, 0, len(o.questions))
	for _, q := range o.questions {
		if q.Handle == nil {
			o.lock.Unlock()
			return failed(fhesurvey.Errorf(fhesurvey.CodeMissingHandles, "All questions must be answered before decrypting"))
		}
		pairs = append(pairs, fhevm.HandleContractPair{
			Handle:          *q.Handle,
			ContractAddress: c.contract,
		})
	}
	o.lock.Unlock()

	o.setMessage("Start decrypt tallies")
	inst, err := o.session.EnsureInstance(ctx)
	if err != nil {
		return o.decryptFailed(opID, err)
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Decryption", reason)
	}

	o.setMessage("Loading decryption signature...")
	sig, err := o.signatures.LoadOrSign(ctx, inst, []common.Address{c.contract}, wallet)
	if err != nil {
		if signature.IsUnavailable(err) {
			return failed(fhesurvey.NewError(fhesurvey.CodeSignatureUnavailable, "Unable to build FHEVM decryption signature", err))
		}
		return o.decryptFailed(opID, err)
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Decryption", reason)
	}

	o.setMessage("Decrypting survey results...")
	values, err := inst.UserDecrypt(ctx, pairs, sig.Request())
	if err != nil {
		return o.decryptFailed(opID, err)
	}
	if reason := o.staleReason(c); reason != "" {
		return stale("Decryption", reason)
	}

	if err := o.applyDecrypted(pairs, values); err != nil {
		if err.Code == fhesurvey.CodeStale {
			return cancelled(err.Message, err)
		}
		return failed(err)
	}
	return completed("Decryption successful!")
}

func (o *Orchestrator) decryptFailed(opID string, err error) Result {
	if fhesurvey.IsCancelled(err) {
		return cancelled("Decryption cancelled", fhesurvey.NewError(fhesurvey.CodeCancelled, fhesurvey.ErrCancelled.Message, err))
	}
	o.logger.Warn("Decrypt failed",
		"opID", opID,
		log.Err(err),
	)
	code := fhesurvey.CodeOf(err)
	if code == "" {
		code = fhesurvey.CodeNetwork
	}
	return failed(fhesurvey.NewError(code, "Decryption error: "+err.Error(), err))
}

// capture reads the identity the operation runs under and checks that it can
// run at all.
func (o *Orchestrator) capture() (captured, Wallet, *Result) {
	id, wallet := o.session.current()
	addr, ok := o.currentContract()
	if !ok {
		res := failed(notDeployed(id.ChainID))
		return captured{}, nil, &res
	}
	if wallet == nil {
		res := failed(fhesurvey.Errorf(fhesurvey.CodeNotReady, "Please connect wallet first"))
		return captured{}, nil, &res
	}
	c := captured{contract: addr, identity: id}
	o.lock.Lock()
	o.resetIfChangedLocked(c)
	o.lock.Unlock()
	return c, wallet, nil
}

func (o *Orchestrator) currentContract() (common.Address, bool) {
	id := o.session.Identity()
	chainID, ok := o.config.Deployments.EffectiveChainID(id.ChainID, o.config.LocalDev)
	if !ok {
		return common.Address{}, false
	}
	dep, ok := o.config.Deployments.Lookup(chainID)
	return dep.Address, ok
}

// staleReason returns why c no longer matches the live session, or "".
func (o *Orchestrator) staleReason(c captured) string {
	addr, ok := o.currentContract()
	if !ok || addr != c.contract {
		return "contract address changed"
	}
	id := o.session.Identity()
	switch {
	case id.ChainID != c.identity.ChainID:
		return "chain changed"
	case id.SignerAddress != c.identity.SignerAddress:
		return "signer changed"
	default:
		return ""
	}
}

// resetIfChangedLocked drops question state loaded under another identity.
func (o *Orchestrator) resetIfChangedLocked(c captured) {
	if o.loaded == c {
		return
	}
	o.loaded = c
	o.questions = newQuestions()
	o.clearTallies = nil
}

func (o *Orchestrator) applyAnswers(c captured, answers Answers) {
	o.lock.Lock()
	o.resetIfChangedLocked(c)
	changed := false
	for i, word := range answers {
		h := normalizeHandle(word)
		if sameHandle(o.questions[i].Handle, h) {
			continue
		}
		o.questions[i].Handle = h
		o.questions[i].Decrypted = nil
		changed = true
	}
	if changed {
		o.clearTallies = nil
	}
	o.lock.Unlock()
	o.publish()
}

// applyDecrypted records values only if every handle is present and still
// current.
func (o *Orchestrator) applyDecrypted(pairs []fhevm.HandleContractPair, values map[common.Hash]*uint256.Int) *fhesurvey.Error {
	o.lock.Lock()
	defer func() {
		o.lock.Unlock()
		o.publish()
	}()

	decrypted := make([]*uint256.Int, len(pairs))
	for i, p := range pairs {
		if !sameHandle(o.questions[i].Handle, &p.Handle) {
			return fhesurvey.Errorf(fhesurvey.CodeStale, "Decryption cancelled: answers changed")
		}
		v, ok := values[p.Handle]
		if !ok || v == nil {
			return fhesurvey.Errorf(fhesurvey.CodeMissingHandles, "Decryption result is missing handle %s", p.Handle)
		}
		decrypted[i] = v.Clone()
	}
	for i, v := range decrypted {
		o.questions[i].Decrypted = v
	}
	o.clearTallies = &ClearTallies{
		IDNumber:     decrypted[QuestionIDNumber].Clone(),
		BankPassword: decrypted[QuestionBankPassword].Clone(),
		Age:          decrypted[QuestionAge].Clone(),
	}
	return nil
}

func (o *Orchestrator) setMessage(msg string) {
	o.lock.Lock()
	o.message = msg
	o.lock.Unlock()
	o.publish()
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	id := o.session.Identity()
	addr, deployed := o.currentContract()

	o.lock.Lock()
	defer o.lock.Unlock()

	o.resetIfChangedLocked(captured{contract: addr, identity: id})
	s := Snapshot{
		ChainID:    id.ChainID,
		Questions:  make([]QuestionState, len(o.questions)),
		Refreshing: o.active == OpRefresh,
		Submitting: o.active == OpSubmit,
		Decrypting: o.active == OpDecrypt,
		Message:    o.message,
	}
	if deployed {
		s.ContractAddress = &addr
	}
	for i, q := range o.questions {
		s.Questions[i] = q.clone()
	}
	if o.clearTallies != nil {
		s.ClearTallies = &ClearTallies{
			IDNumber:     o.clearTallies.IDNumber.Clone(),
			BankPassword: o.clearTallies.BankPassword.Clone(),
			Age:          o.clearTallies.Age.Clone(),
		}
	}
	return s
}

// Subscribe returns a stream of snapshots. Slow readers only see the latest
// one. The returned func unsubscribes and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	o.subLock.Lock()
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = ch
	ch <- o.Snapshot()
	o.subLock.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subLock.Lock()
			delete(o.subscribers, id)
			close(ch)
			o.subLock.Unlock()
		})
	}
}

func (o *Orchestrator) publish() {
	o.subLock.Lock()
	defer o.subLock.Unlock()

	if len(o.subscribers) == 0 {
		return
	}
	snap := o.Snapshot()
	for _, ch := range o.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func notDeployed(chainID uint64) *fhesurvey.Error {
	return fhesurvey.Errorf(fhesurvey.CodeNotReady, "EncryptedSurvey deployment not found for chainId=%d.", chainID)
}

func completed(msg string) Result {
	return Result{Outcome: OutcomeCompleted, Message: msg}
}

func failed(err *fhesurvey.Error) Result {
	return Result{Outcome: OutcomeFailed, Message: err.Message, Err: err}
}

func cancelled(msg string, err error) Result {
	return Result{Outcome: OutcomeCancelled, Message: msg, Err: err}
}

func stale(prefix, reason string) Result {
	msg := fmt.Sprintf("%s cancelled: %s", prefix, reason)
	return cancelled(msg, fhesurvey.Errorf(fhesurvey.CodeStale, "%s", msg))
}

func cancelledByContext(ctx context.Context, prefix string) Result {
	return cancelled(prefix+" cancelled", fhesurvey.CheckCancelled(ctx))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

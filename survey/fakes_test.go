// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/fhevm/mock"
	"github.com/luxfi/fhesurvey/signature"
	"github.com/luxfi/fhesurvey/storage"
	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/core/types"
	crypto "github.com/luxfi/crypto"
	"github.com/luxfi/geth/signer/core/apitypes"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var surveyAddress = common.HexToAddress("0x5FbDB2315678afecb367f032c93F642f64180aa3")

var testMetadata = fhevm.RelayerMetadata{
	ACLAddress:           common.HexToAddress("0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D"),
	InputVerifierAddress: common.HexToAddress("0x901F8942346f7AB3a01F6D7613119Bca447Bb030"),
	KMSVerifierAddress:   common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
}

// revertError mimics the JSON-RPC error returned for a reverted call.
type revertError struct {
	reason string
	data   []byte
}

func (e *revertError) Error() string {
	if e.reason != "" {
		return "execution reverted: " + e.reason
	}
	return "execution reverted"
}

func (*revertError) ErrorCode() int { return 3 }

func (e *revertError) ErrorData() interface{} { return hexutil.Encode(e.data) }

func revertWithReason(reason string) *revertError {
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	data := append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
	return &revertError{reason: reason, data: data}
}

func revertInvalidProof() *revertError {
	return &revertError{data: append(invalidProofSelector[:], make([]byte, 32)...)}
}

// fakeChain is an in-memory survey contract. Input proofs are checked
// against the registry of the development backend.
type fakeChain struct {
	lock     sync.Mutex
	chainID  uint64
	registry *mock.Registry
	answers  map[common.Address]Answers
	receipts map[common.Hash]*types.Receipt
	nonces   map[common.Address]uint64
	sent     int
	block    int64

	dropReceipts         bool
	failGetMyAnswers     bool
	trailingGetMyAnswers bool
	failGetUserAnswers   bool
	// revertSends mines every transaction with a failed status.
	revertSends bool
	// onCall runs before a call to method is served.
	onCall func(method string)
	// onSend runs once a transaction has been accepted.
	onSend func()
}

func newFakeChain(registry *mock.Registry) *fakeChain {
	return &fakeChain{
		chainID:  chain.LocalChainID,
		registry: registry,
		answers:  make(map[common.Address]Answers),
		receipts: make(map[common.Hash]*types.Receipt),
		nonces:   make(map[common.Address]uint64),
		block:    1,
	}
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method, args, err := decodeCall(msg.Data)
	if err != nil {
		return nil, err
	}
	f.lock.Lock()
	hook := f.onCall
	f.lock.Unlock()
	if hook != nil {
		hook(method.Name)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	switch method.Name {
	case methodGetMyAnswers:
		if f.failGetMyAnswers {
			return nil, errors.New("could not decode result data")
		}
		out, err := packAnswers(method, f.answers[msg.From])
		if err != nil {
			return nil, err
		}
		if f.trailingGetMyAnswers {
			out = append(out, 0x00)
		}
		return out, nil
	case methodGetUserAnswers:
		if f.failGetUserAnswers {
			return nil, errors.New("method not found")
		}
		return packAnswers(method, f.answers[args[0].(common.Address)])
	case methodGetTallies:
		return method.Outputs.Pack([32]byte{}, [32]byte{})
	case methodHasAnswered:
		user, id := args[0].(common.Address), args[1].(uint8)
		answered := int(id) < numQuestions && f.answers[user][id] != (common.Hash{})
		return method.Outputs.Pack(answered)
	case methodSubmitAnswer:
		return nil, f.checkSubmit(msg.From, args)
	default:
		return nil, nil
	}
}

func (f *fakeChain) checkSubmit(from common.Address, args []interface{}) error {
	id := args[0].(uint8)
	handle := common.Hash(args[1].([32]byte))
	proof := args[2].([]byte)
	if int(id) >= numQuestions {
		return revertWithReason("Invalid question ID")
	}
	if f.answers[from][id] != (common.Hash{}) {
		return revertWithReason("Already answered")
	}
	if err := f.registry.VerifyInputProof(surveyAddress, from, f.chainID, handle, proof); err != nil {
		return revertInvalidProof()
	}
	return nil
}

func (f *fakeChain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.nonces[account], nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return &types.Header{
		Number:  big.NewInt(f.block),
		BaseFee: big.NewInt(1_000_000_000),
	}, nil
}

func (*fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (*fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 300_000, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	sender, err := types.Sender(types.LatestSignerForChainID(new(big.Int).SetUint64(f.chainID)), tx)
	if err != nil {
		return err
	}
	method, args, err := decodeCall(tx.Data())
	if err != nil {
		return err
	}

	f.lock.Lock()
	hook := f.onSend
	defer func() {
		f.lock.Unlock()
		if hook != nil {
			hook()
		}
	}()

	status := types.ReceiptStatusSuccessful
	if method.Name == methodSubmitAnswer {
		if err := f.checkSubmit(sender, args); f.revertSends || err != nil {
			status = types.ReceiptStatusFailed
		} else {
			answers := f.answers[sender]
			answers[args[0].(uint8)] = args[1].([32]byte)
			f.answers[sender] = answers
		}
	}
	f.nonces[sender]++
	f.sent++
	f.block++
	if !f.dropReceipts {
		f.receipts[tx.Hash()] = &types.Receipt{
			Status:      status,
			TxHash:      tx.Hash(),
			BlockNumber: big.NewInt(f.block),
		}
	}
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeChain) sentCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.sent
}

func (f *fakeChain) setAnswer(user common.Address, id QuestionID, h common.Hash) {
	f.lock.Lock()
	defer f.lock.Unlock()
	answers := f.answers[user]
	answers[id] = h
	f.answers[user] = answers
}

func (f *fakeChain) setOnSend(hook func()) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.onSend = hook
}

func (f *fakeChain) setOnCall(hook func(method string)) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.onCall = hook
}

func decodeCall(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("missing selector")
	}
	method, err := SurveyABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func packAnswers(method *abi.Method, a Answers) ([]byte, error) {
	return method.Outputs.Pack([32]byte(a[0]), [32]byte(a[1]), [32]byte(a[2]))
}

// fakeFactory builds development instances. When gate is set, creation
// waits for it and started is signalled first.
type fakeFactory struct {
	registry *mock.Registry

	lock    sync.Mutex
	calls   int
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeFactory) CreateInstance(ctx context.Context, _ fhevm.Params) (fhevm.Instance, error) {
	f.lock.Lock()
	f.calls++
	gate, started, err := f.gate, f.started, f.err
	f.lock.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return mock.NewInstance(fhevm.MockParams{
		ChainID:  chain.LocalChainID,
		Metadata: testMetadata,
	}, f.registry), nil
}

func (f *fakeFactory) callCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

type refusingWallet struct {
	*signature.LocalSigner
}

func (refusingWallet) SignTypedData(context.Context, apitypes.TypedData) ([]byte, error) {
	return nil, signature.ErrRefused
}

type switchingWallet struct {
	*signature.LocalSigner
	onSign func()
}

func (w *switchingWallet) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	w.onSign()
	return w.LocalSigner.SignTypedData(ctx, td)
}

func newWallet(t *testing.T) *signature.LocalSigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signature.NewLocalSigner(key)
}

type surveyTest struct {
	chain    *fakeChain
	factory  *fakeFactory
	session  *Session
	orch     *Orchestrator
	metrics  *OrchestratorMetrics
	alice    *signature.LocalSigner
	bob      *signature.LocalSigner
	registry *mock.Registry
}

func newSurveyTest(t *testing.T) *surveyTest {
	registry, err := mock.NewRegistry()
	require.NoError(t, err)
	return newSurveyTestWith(t, registry, newFakeChain(registry), storage.NewMemoryStorage(), newWallet(t))
}

// newSurveyTestWith builds an orchestrator for alice over an existing chain
// and store, as a fresh process would.
func newSurveyTestWith(
	t *testing.T,
	registry *mock.Registry,
	fc *fakeChain,
	store storage.Storage,
	alice *signature.LocalSigner,
) *surveyTest {
	logger := log.NewNoOpLogger()
	factory := &fakeFactory{registry: registry}
	session := NewSession(logger, factory, SessionConfig{})
	session.Switch(chain.LocalChainID, alice)

	metrics := NewOrchestratorMetrics(prometheus.NewRegistry())
	orch := NewOrchestrator(
		logger,
		session,
		fc,
		signature.NewManager(logger, store, 0),
		metrics,
		Config{
			Deployments: Deployments{
				chain.LocalChainID: {ChainID: chain.LocalChainID, ChainName: "hardhat", Address: surveyAddress},
			},
			LocalDev:       true,
			ReceiptTimeout: 500 * time.Millisecond,
		},
	)
	return &surveyTest{
		chain:    fc,
		factory:  factory,
		session:  session,
		orch:     orch,
		metrics:  metrics,
		alice:    alice,
		bob:      newWallet(t),
		registry: registry,
	}
}

// answerAll submits values to every question as the current wallet.
func (st *surveyTest) answerAll(t *testing.T, values [numQuestions]int64) {
	for i, v := range values {
		res := st.orch.Submit(context.Background(), QuestionID(i), v)
		require.Equal(t, OutcomeCompleted, res.Outcome, res.Message)
	}
}

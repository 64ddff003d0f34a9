// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"context"
	"math/big"
	"sync"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/fhesurvey/chain"
	"github.com/luxfi/fhesurvey/fhevm"
	"github.com/luxfi/fhesurvey/signature"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
)

// Wallet signs decryption authorizations and transactions for one account.
type Wallet interface {
	signature.Signer
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// InstanceFactory is satisfied by *fhevm.Factory.
type InstanceFactory interface {
	CreateInstance(ctx context.Context, params fhevm.Params) (fhevm.Instance, error)
}

type SessionConfig struct {
	Target         chain.Target
	MockChains     chain.MockChains
	OnStatusChange fhevm.StatusFunc
}

type pendingCreate struct {
	cancel context.CancelFunc
}

// Session is the live chain and wallet of the user together with the
// instance built for them. Switching either drops the instance.
type Session struct {
	logger  log.Logger
	factory InstanceFactory
	config  SessionConfig

	lock       sync.Mutex
	chainID    uint64
	wallet     Wallet
	instance   fhevm.Instance
	generation uint64
	pending    *pendingCreate
}

func NewSession(logger log.Logger, factory InstanceFactory, config SessionConfig) *Session {
	return &Session{
		logger:  logger,
		factory: factory,
		config:  config,
	}
}

// Switch sets the live chain and wallet. When the identity changes, the
// current instance is dropped and any instance creation in flight is
// cancelled.
func (s *Session) Switch(chainID uint64, wallet Wallet) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.chainID == chainID && walletAddress(s.wallet) == walletAddress(wallet) {
		s.wallet = wallet
		return
	}
	s.logger.Info("Switching session",
		"chainID", chainID,
		"signer", walletAddress(wallet),
	)
	s.chainID = chainID
	s.wallet = wallet
	s.instance = nil
	s.generation++
	if s.pending != nil {
		s.pending.cancel()
		s.pending = nil
	}
}

func (s *Session) Identity() fhesurvey.SessionIdentity {
	s.lock.Lock()
	defer s.lock.Unlock()

	return fhesurvey.SessionIdentity{
		ChainID:       s.chainID,
		SignerAddress: walletAddress(s.wallet),
	}
}

// current returns the identity and wallet read together.
func (s *Session) current() (fhesurvey.SessionIdentity, Wallet) {
	s.lock.Lock()
	defer s.lock.Unlock()

	id := fhesurvey.SessionIdentity{
		ChainID:       s.chainID,
		SignerAddress: walletAddress(s.wallet),
	}
	return id, s.wallet
}

// Wallet returns the connected wallet, or nil.
func (s *Session) Wallet() Wallet {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.wallet
}

// Instance returns the instance of the current session, or nil if none was
// built yet.
func (s *Session) Instance() fhevm.Instance {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.instance
}

// EnsureInstance returns the instance of the current session, building it
// if needed. An instance finished after a Switch is discarded and
// fhesurvey.ErrCancelled is returned.
func (s *Session) EnsureInstance(ctx context.Context) (fhevm.Instance, error) {
	s.lock.Lock()
	if s.instance != nil {
		inst := s.instance
		s.lock.Unlock()
		return inst, nil
	}
	generation := s.generation
	createCtx, cancel := context.WithCancel(ctx)
	mine := &pendingCreate{cancel: cancel}
	s.pending = mine
	s.lock.Unlock()
	defer cancel()

	inst, err := s.factory.CreateInstance(createCtx, fhevm.Params{
		Target:         s.config.Target,
		MockChains:     s.config.MockChains,
		OnStatusChange: s.config.OnStatusChange,
	})

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.pending == mine {
		s.pending = nil
	}
	if s.generation != generation {
		return nil, fhesurvey.NewError(fhesurvey.CodeCancelled, fhesurvey.ErrCancelled.Message, err)
	}
	if err != nil {
		return nil, err
	}
	if s.instance == nil {
		s.instance = inst
	}
	return s.instance, nil
}

func walletAddress(w Wallet) common.Address {
	if w == nil {
		return common.Address{}
	}
	return w.Address()
}

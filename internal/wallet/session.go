// Package wallet holds the caller's signing identity and the confirmation
// step every state-changing request passes through.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNotConnected        = errors.New("wallet not connected")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrInvalidKey          = errors.New("invalid private key")
)

// Session is the connected identity. The zero value is disconnected.
type Session struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	account common.Address
	chainID *big.Int
}

// NewSession creates a disconnected session for chainID.
func NewSession(chainID *big.Int) *Session {
	return &Session{chainID: new(big.Int).Set(chainID)}
}

// Connect makes key the active identity and returns its address.
func (s *Session) Connect(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	s.mu.Lock()
	s.key = key
	s.account = addr
	s.mu.Unlock()
	return addr
}

// ConnectHex connects with a hex encoded private key, with or without 0x.
func (s *Session) ConnectHex(hexKey string) (common.Address, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	return s.Connect(key), nil
}

// Disconnect forgets the active identity.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.key = nil
	s.account = common.Address{}
	s.mu.Unlock()
}

// Connected reports whether an identity is active.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// Account returns the active address.
func (s *Session) Account() (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return common.Address{}, ErrNotConnected
	}
	return s.account, nil
}

// ChainID returns the chain the session signs for.
func (s *Session) ChainID() *big.Int {
	if s.chainID == nil {
		return nil
	}
	return new(big.Int).Set(s.chainID)
}

// TransactOpts returns signing options bound to ctx for the active identity.
func (s *Session) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	s.mu.RLock()
	key, chainID := s.key, s.chainID
	s.mu.RUnlock()
	if key == nil {
		return nil, ErrNotConnected
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("session has no chain id")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// Package ledger talks to the agent registry contract. The contract is the
// authority for agents, rentals and balances; this package only reads its
// state and submits priced calls to it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrSettlementRejected = errors.New("settlement rejected")
)

// SettlementError carries the contract's reason for refusing a call.
type SettlementError struct {
	Method string
	TxHash common.Hash
	Reason string
}

func (e *SettlementError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("%s: %s (tx %s): %s", ErrSettlementRejected, e.Method, e.TxHash.Hex(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrSettlementRejected, e.Method, e.Reason)
}

func (e *SettlementError) Unwrap() error {
	return ErrSettlementRejected
}

// Reader is the read surface of the registry.
type Reader interface {
	Agent(ctx context.Context, id uint64) (*models.Agent, error)
	Agents(ctx context.Context) ([]models.Agent, error)
	Rental(ctx context.Context, id uint64) (*models.Rental, error)
	IsRented(ctx context.Context, id uint64) (bool, error)
	TimeRemaining(ctx context.Context, id uint64) (time.Duration, error)
	Balance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Ledger is a Reader that can also submit calls and wait for them.
type Ledger interface {
	Reader
	Submit(ctx context.Context, auth *bind.TransactOpts, call Call) (*types.Transaction, error)
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Call is a state-changing contract request awaiting authorization.
type Call struct {
	Method  string
	Args    []interface{}
	Value   *big.Int // attached payment, nil for non-payable calls
	AgentID uint64   // zero when the call is not about one agent
}

// Describe returns a one-line summary suitable for an approval prompt.
func (c Call) Describe() string {
	s := c.Method
	if c.AgentID != 0 {
		s += fmt.Sprintf(" agent #%d", c.AgentID)
	}
	if c.Value != nil && c.Value.Sign() > 0 {
		s += fmt.Sprintf(" paying %s", units.FormatAmount(c.Value))
	}
	return s
}

func word(v *big.Int, what string) error {
	if !units.FitsUint256(v) {
		return fmt.Errorf("%w: %s does not fit in uint256", units.ErrInvalidAmount, what)
	}
	return nil
}

func idWord(id uint64) (*big.Int, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: agent id must be positive", ErrAgentNotFound)
	}
	return new(big.Int).SetUint64(id), nil
}

// RegisterAgent builds registerAgent(contentRef, pricePerSecond, basePrice).
func RegisterAgent(contentRef string, pricePerSecond, basePrice *big.Int) (Call, error) {
	if contentRef == "" {
		return Call{}, errors.New("content reference is required")
	}
	if err := word(pricePerSecond, "price per second"); err != nil {
		return Call{}, err
	}
	if err := word(basePrice, "base price"); err != nil {
		return Call{}, err
	}
	return Call{Method: "registerAgent", Args: []interface{}{contentRef, pricePerSecond, basePrice}}, nil
}

// RentAgent builds rentAgent(id, durationSeconds) paying value.
func RentAgent(id uint64, durationSeconds int64, value *big.Int) (Call, error) {
	return timedCall("rentAgent", id, durationSeconds, value)
}

// ExtendRental builds extendRental(id, extraSeconds) paying value.
func ExtendRental(id uint64, extraSeconds int64, value *big.Int) (Call, error) {
	return timedCall("extendRental", id, extraSeconds, value)
}

func timedCall(method string, id uint64, seconds int64, value *big.Int) (Call, error) {
	idArg, err := idWord(id)
	if err != nil {
		return Call{}, err
	}
	if seconds <= 0 {
		return Call{}, fmt.Errorf("%w: %d seconds", units.ErrInvalidDuration, seconds)
	}
	if err := word(value, "payment"); err != nil {
		return Call{}, err
	}
	return Call{
		Method:  method,
		Args:    []interface{}{idArg, big.NewInt(seconds)},
		Value:   new(big.Int).Set(value),
		AgentID: id,
	}, nil
}

// SetAvailability builds setAvailability(id, available).
func SetAvailability(id uint64, available bool) (Call, error) {
	idArg, err := idWord(id)
	if err != nil {
		return Call{}, err
	}
	return Call{Method: "setAvailability", Args: []interface{}{idArg, available}, AgentID: id}, nil
}

// SetPrice builds setPrice(id, newPricePerSecond).
func SetPrice(id uint64, pricePerSecond *big.Int) (Call, error) {
	return amountCall("setPrice", id, pricePerSecond)
}

// SetBasePrice builds setBasePrice(id, newBasePrice).
func SetBasePrice(id uint64, basePrice *big.Int) (Call, error) {
	return amountCall("setBasePrice", id, basePrice)
}

func amountCall(method string, id uint64, amount *big.Int) (Call, error) {
	idArg, err := idWord(id)
	if err != nil {
		return Call{}, err
	}
	if err := word(amount, "amount"); err != nil {
		return Call{}, err
	}
	return Call{Method: method, Args: []interface{}{idArg, new(big.Int).Set(amount)}, AgentID: id}, nil
}

// FinalizeRental builds finalizeRental(id).
func FinalizeRental(id uint64) (Call, error) {
	idArg, err := idWord(id)
	if err != nil {
		return Call{}, err
	}
	return Call{Method: "finalizeRental", Args: []interface{}{idArg}, AgentID: id}, nil
}

// WithdrawEarnings builds withdrawEarnings().
func WithdrawEarnings() Call {
	return Call{Method: "withdrawEarnings"}
}

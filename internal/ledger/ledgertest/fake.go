// Package ledgertest provides an in-memory registry for tests.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
)

// Fake is a ledger.Ledger that enforces the registry's rules in memory.
type Fake struct {
	mu       sync.Mutex
	agents   map[uint64]*models.Agent
	rentals  map[uint64]*models.Rental
	balances map[common.Address]*big.Int
	pending  map[common.Hash]error
	nextID   uint64
	block    uint64

	// Now is the ledger clock.
	Now func() time.Time
	// RevertReceipt, when set, mines every submitted call as failed with
	// this reason instead of applying it.
	RevertReceipt string

	readErr   error
	reads     int
	submitted []ledger.Call
}

var _ ledger.Ledger = (*Fake)(nil)

// New creates an empty fake ledger.
func New() *Fake {
	return &Fake{
		agents:   map[uint64]*models.Agent{},
		rentals:  map[uint64]*models.Rental{},
		balances: map[common.Address]*big.Int{},
		pending:  map[common.Hash]error{},
		Now:      time.Now,
	}
}

// AddAgent seeds an agent and returns its id.
func (f *Fake) AddAgent(owner common.Address, contentRef string, rate, base *big.Int, available bool) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addAgent(owner, contentRef, rate, base, available)
}

func (f *Fake) addAgent(owner common.Address, contentRef string, rate, base *big.Int, available bool) uint64 {
	f.nextID++
	f.agents[f.nextID] = &models.Agent{
		ID:             f.nextID,
		Owner:          owner,
		ContentRef:     contentRef,
		Score:          new(big.Int),
		PricePerSecond: new(big.Int).Set(rate),
		BasePrice:      new(big.Int).Set(base),
		Available:      available,
		CreatedAt:      f.Now().UTC().Truncate(time.Second),
	}
	f.rentals[f.nextID] = &models.Rental{PricePaid: new(big.Int)}
	return f.nextID
}

// SetRental overwrites the rental slot of id.
func (f *Fake) SetRental(id uint64, r models.Rental) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rentals[id] = &r
}

// SetAvailable flips the availability flag of id directly.
func (f *Fake) SetAvailable(id uint64, available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.agents[id]; ok {
		a.Available = available
	}
}

// SetReadErr makes every read fail with err until cleared with nil.
func (f *Fake) SetReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// Reads returns how many read calls were served.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Submitted returns the calls accepted by Submit.
func (f *Fake) Submitted() []ledger.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Call(nil), f.submitted...)
}

func (f *Fake) read() error {
	f.reads++
	return f.readErr
}

func (f *Fake) Agent(ctx context.Context, id uint64) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read(); err != nil {
		return nil, err
	}
	a, ok := f.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ledger.ErrAgentNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (f *Fake) Agents(ctx context.Context) ([]models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read(); err != nil {
		return nil, err
	}
	out := make([]models.Agent, 0, len(f.agents))
	for id := uint64(1); id <= f.nextID; id++ {
		if a, ok := f.agents[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *Fake) Rental(ctx context.Context, id uint64) (*models.Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read(); err != nil {
		return nil, err
	}
	r, ok := f.rentals[id]
	if !ok {
		return &models.Rental{PricePaid: new(big.Int)}, nil
	}
	cp := *r
	return &cp, nil
}

func (f *Fake) IsRented(ctx context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read(); err != nil {
		return false, err
	}
	return f.rentals[id].Active(f.Now()), nil
}

func (f *Fake) TimeRemaining(ctx context.Context, id uint64) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read(); err != nil {
		return 0, err
	}
	return f.rentals[id].TimeRemaining(f.Now()).Truncate(time.Second), nil
}

func (f *Fake) Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read(); err != nil {
		return nil, err
	}
	if b, ok := f.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// Submit validates call against the registry rules. Rule violations are
// returned as *ledger.SettlementError, as a node's gas estimation would.
func (f *Fake) Submit(ctx context.Context, auth *bind.TransactOpts, call ledger.Call) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.block++
	tx := types.NewTx(&types.LegacyTx{
		Nonce: f.block,
		To:    &common.Address{},
		Value: orZero(call.Value),
		Data:  []byte(call.Method),
	})

	if f.RevertReceipt != "" {
		f.submitted = append(f.submitted, call)
		f.pending[tx.Hash()] = &ledger.SettlementError{Method: call.Method, TxHash: tx.Hash(), Reason: f.RevertReceipt}
		return tx, nil
	}
	if reason := f.apply(auth.From, call); reason != "" {
		return nil, &ledger.SettlementError{Method: call.Method, Reason: reason}
	}
	f.submitted = append(f.submitted, call)
	f.pending[tx.Hash()] = nil
	return tx, nil
}

// Wait returns a receipt for a submitted transaction.
func (f *Fake) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	failure, ok := f.pending[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", tx.Hash().Hex())
	}
	delete(f.pending, tx.Hash())

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(tx.Nonce()),
	}
	if failure != nil {
		receipt.Status = types.ReceiptStatusFailed
		return receipt, failure
	}
	return receipt, nil
}

func (f *Fake) apply(from common.Address, call ledger.Call) string {
	now := f.Now()
	switch call.Method {
	case "registerAgent":
		f.addAgent(from, call.Args[0].(string), call.Args[1].(*big.Int), call.Args[2].(*big.Int), true)
		return ""
	case "withdrawEarnings":
		b := f.balances[from]
		if b == nil || b.Sign() == 0 {
			return "No earnings"
		}
		delete(f.balances, from)
		return ""
	}

	id := call.Args[0].(*big.Int).Uint64()
	agent, ok := f.agents[id]
	if !ok {
		return "Agent does not exist"
	}
	rental := f.rentals[id]

	switch call.Method {
	case "rentAgent":
		secs := call.Args[1].(*big.Int).Int64()
		if !agent.Available {
			return "Agent not available"
		}
		if rental.Active(now) {
			return "Agent already rented"
		}
		cost, _ := pricing.Cost(agent.PricePerSecond, agent.BasePrice, secs)
		if orZero(call.Value).Cmp(cost) < 0 {
			return "Insufficient payment"
		}
		f.rentals[id] = &models.Rental{
			Renter:    from,
			StartAt:   now,
			EndAt:     now.Add(time.Duration(secs) * time.Second),
			PricePaid: new(big.Int).Set(call.Value),
		}
		f.credit(agent.Owner, call.Value)
	case "extendRental":
		secs := call.Args[1].(*big.Int).Int64()
		if !rental.Active(now) || rental.Renter != from {
			return "Not the active renter"
		}
		cost, _ := pricing.ExtensionCost(agent.PricePerSecond, secs)
		if orZero(call.Value).Cmp(cost) < 0 {
			return "Insufficient payment"
		}
		rental.EndAt = rental.EndAt.Add(time.Duration(secs) * time.Second)
		rental.PricePaid = new(big.Int).Add(rental.PricePaid, call.Value)
		f.credit(agent.Owner, call.Value)
	case "finalizeRental":
		if rental.Renter == (common.Address{}) || rental.Active(now) {
			return "Rental still active"
		}
		f.rentals[id] = &models.Rental{PricePaid: new(big.Int)}
	case "setAvailability", "setPrice", "setBasePrice":
		if agent.Owner != from {
			return "Not the owner"
		}
		switch call.Method {
		case "setAvailability":
			agent.Available = call.Args[1].(bool)
		case "setPrice":
			agent.PricePerSecond = new(big.Int).Set(call.Args[1].(*big.Int))
		default:
			agent.BasePrice = new(big.Int).Set(call.Args[1].(*big.Int))
		}
	default:
		return "unknown method " + call.Method
	}
	return ""
}

func (f *Fake) credit(owner common.Address, v *big.Int) {
	b, ok := f.balances[owner]
	if !ok {
		b = new(big.Int)
		f.balances[owner] = b
	}
	b.Add(b, v)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Package flow drives a marketplace action from user input to a settled
// ledger transaction. Each attempt walks a fixed sequence of states and ends
// in Settled or Failed; failures are never retried.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/events"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/pricing"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/wallet"
)

// State is a step of a submission attempt.
type State string

const (
	StateIdle                  State = "idle"
	StateValidatingInput       State = "validating_input"
	StatePublishingContent     State = "publishing_content"
	StateAwaitingAuthorization State = "awaiting_authorization"
	StateAwaitingSettlement    State = "awaiting_settlement"
	StateSettled               State = "settled"
	StateFailed                State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

// Transition records one state change.
type Transition struct {
	FlowID string
	From   State
	To     State
	At     time.Time
	Err    error
}

// Result is the outcome of one attempt.
type Result struct {
	FlowID     string
	Action     string
	State      State
	FailedIn   State // the state the attempt failed in, empty on success
	Trace      []Transition
	AgentID    uint64
	ContentRef string
	Cost       *big.Int
	TxHash     common.Hash
	Receipt    *types.Receipt
	Err        error
}

// Publisher stores an agent document and returns its content id.
type Publisher interface {
	Publish(ctx context.Context, doc *models.AgentMetadata) (string, error)
}

// Config holds the collaborators of an Engine. Ledger and Session are
// required.
type Config struct {
	Ledger       ledger.Ledger
	Session      *wallet.Session
	Authorizer   wallet.Authorizer
	Publisher    Publisher
	Events       events.Publisher
	Guard        pricing.Guard
	OnTransition func(Transition)
	Logger       zerolog.Logger
}

// Engine runs submission attempts.
type Engine struct {
	cfg       Config
	validator *MetadataValidator
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("flow: ledger is required")
	}
	if cfg.Session == nil {
		return nil, errors.New("flow: session is required")
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = wallet.AutoApprove
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	validator, err := NewMetadataValidator()
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		validator: validator,
		now:       time.Now,
		logger:    cfg.Logger.With().Str("component", "flow").Logger(),
	}, nil
}

// attempt is the mutable state of one run.
type attempt struct {
	e   *Engine
	res *Result
}

func (e *Engine) start(action string) *attempt {
	return &attempt{e: e, res: &Result{
		FlowID: uuid.NewString(),
		Action: action,
		State:  StateIdle,
	}}
}

func (a *attempt) to(next State, err error) {
	t := Transition{FlowID: a.res.FlowID, From: a.res.State, To: next, At: a.e.now(), Err: err}
	a.res.State = next
	a.res.Trace = append(a.res.Trace, t)
	if a.e.cfg.OnTransition != nil {
		a.e.cfg.OnTransition(t)
	}
}

func (a *attempt) fail(err error) (*Result, error) {
	a.res.FailedIn = a.res.State
	a.res.Err = err
	a.to(StateFailed, err)
	metrics.FlowOutcomes.WithLabelValues(a.res.Action, string(a.res.FailedIn)).Inc()
	a.e.logger.Warn().
		Err(err).
		Str("flow_id", a.res.FlowID).
		Str("action", a.res.Action).
		Str("phase", string(a.res.FailedIn)).
		Msg("flow failed")
	return a.res, err
}

// account runs the identity check every action starts with.
func (a *attempt) account() (common.Address, error) {
	return a.e.cfg.Session.Account()
}

// settle is the shared tail: authorization, submission and settlement.
func (a *attempt) settle(ctx context.Context, from common.Address, call ledger.Call) (*Result, error) {
	a.to(StateAwaitingAuthorization, nil)
	req := wallet.Request{
		Account: from,
		Method:  call.Method,
		AgentID: call.AgentID,
		Value:   call.Value,
		ChainID: a.e.cfg.Session.ChainID(),
	}
	if err := a.e.cfg.Authorizer.Authorize(ctx, req); err != nil {
		if !errors.Is(err, wallet.ErrAuthorizationDenied) {
			err = fmt.Errorf("%w: %v", wallet.ErrAuthorizationDenied, err)
		}
		return a.fail(err)
	}
	opts, err := a.e.cfg.Session.TransactOpts(ctx)
	if err != nil {
		return a.fail(err)
	}

	a.to(StateAwaitingSettlement, nil)
	tx, err := a.e.cfg.Ledger.Submit(ctx, opts, call)
	if err != nil {
		return a.fail(err)
	}
	a.res.TxHash = tx.Hash()

	receipt, err := a.e.cfg.Ledger.Wait(ctx, tx)
	a.res.Receipt = receipt
	if err != nil {
		return a.fail(err)
	}

	a.to(StateSettled, nil)
	metrics.FlowOutcomes.WithLabelValues(a.res.Action, string(StateSettled)).Inc()
	a.e.logger.Info().
		Str("flow_id", a.res.FlowID).
		Str("action", a.res.Action).
		Uint64("agent_id", call.AgentID).
		Str("tx", tx.Hash().Hex()).
		Msg("flow settled")

	ev := events.SettledEvent{
		FlowID:    a.res.FlowID,
		Action:    a.res.Action,
		AgentID:   call.AgentID,
		Account:   from.Hex(),
		TxHash:    tx.Hash().Hex(),
		SettledAt: a.e.now().UTC(),
	}
	if receipt != nil && receipt.BlockNumber != nil {
		ev.Block = receipt.BlockNumber.Uint64()
	}
	if err := a.e.cfg.Events.PublishSettled(ctx, ev); err != nil {
		a.e.logger.Warn().Err(err).Str("flow_id", a.res.FlowID).Msg("settled event not delivered")
	}
	return a.res, nil
}

// RegisterInput is a new listing.
type RegisterInput struct {
	Metadata       models.AgentMetadata
	PricePerSecond *big.Int // smallest units per second
	BasePrice      *big.Int // smallest units
}

// Register validates the document, publishes it and registers the agent
// with the published content reference.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	a := e.start("registerAgent")
	a.to(StateValidatingInput, nil)

	from, err := a.account()
	if err != nil {
		return a.fail(err)
	}
	if e.cfg.Publisher == nil {
		return a.fail(&PublishError{Err: errors.New("no content publisher configured")})
	}

	doc := in.Metadata
	doc.Category = canonicalCategory(doc.Category)
	doc.Owner = from.Hex()
	if doc.CreatedAt == "" {
		doc.CreatedAt = e.now().UTC().Format(time.RFC3339)
	}
	if err := e.validator.Validate(&doc); err != nil {
		return a.fail(err)
	}
	if err := checkAmount(in.PricePerSecond, "price per second"); err != nil {
		return a.fail(err)
	}
	base := in.BasePrice
	if base == nil {
		base = new(big.Int)
	}
	if err := checkAmount(base, "base price"); err != nil {
		return a.fail(err)
	}

	a.to(StatePublishingContent, nil)
	cid, err := e.cfg.Publisher.Publish(ctx, &doc)
	if err != nil {
		return a.fail(&PublishError{Err: err})
	}
	if cid == "" {
		return a.fail(&PublishError{Err: errors.New("publisher returned no content id")})
	}
	a.res.ContentRef = cid

	call, err := ledger.RegisterAgent(cid, in.PricePerSecond, base)
	if err != nil {
		return a.fail(err)
	}
	return a.settle(ctx, from, call)
}

// RentInput opens a rental. When Agent is set its prices are used and no
// ledger read happens before authorization.
type RentInput struct {
	AgentID         uint64
	DurationSeconds int64
	Agent           *models.Agent
}

// Rent prices the rental, refuses implausible totals and submits it with the
// cost attached.
func (e *Engine) Rent(ctx context.Context, in RentInput) (*Result, error) {
	return e.timed(ctx, "rentAgent", in.AgentID, in.DurationSeconds, in.Agent, false)
}

// ExtendInput lengthens the caller's active rental.
type ExtendInput struct {
	AgentID      uint64
	ExtraSeconds int64
	Agent        *models.Agent
}

// Extend charges rate times the extra seconds; no base fee applies.
func (e *Engine) Extend(ctx context.Context, in ExtendInput) (*Result, error) {
	return e.timed(ctx, "extendRental", in.AgentID, in.ExtraSeconds, in.Agent, true)
}

func (e *Engine) timed(ctx context.Context, action string, id uint64, seconds int64, agent *models.Agent, extension bool) (*Result, error) {
	a := e.start(action)
	a.res.AgentID = id
	a.to(StateValidatingInput, nil)

	if seconds <= 0 {
		return a.fail(fmt.Errorf("%w: %d seconds", units.ErrInvalidDuration, seconds))
	}
	from, err := a.account()
	if err != nil {
		return a.fail(err)
	}
	if agent == nil {
		if agent, err = e.cfg.Ledger.Agent(ctx, id); err != nil {
			return a.fail(err)
		}
	}

	var cost *big.Int
	if extension {
		cost, err = pricing.ExtensionCost(agent.PricePerSecond, seconds)
	} else {
		cost, err = pricing.Cost(agent.PricePerSecond, agent.BasePrice, seconds)
	}
	if err != nil {
		return a.fail(err)
	}
	a.res.Cost = cost
	if err := e.cfg.Guard.Check(cost); err != nil {
		return a.fail(err)
	}

	var call ledger.Call
	if extension {
		call, err = ledger.ExtendRental(id, seconds, cost)
	} else {
		call, err = ledger.RentAgent(id, seconds, cost)
	}
	if err != nil {
		return a.fail(err)
	}
	return a.settle(ctx, from, call)
}

// SetAvailability lists or delists an owned agent.
func (e *Engine) SetAvailability(ctx context.Context, id uint64, available bool) (*Result, error) {
	return e.simple(ctx, "setAvailability", id, func() (ledger.Call, error) {
		return ledger.SetAvailability(id, available)
	})
}

// SetPrice changes the per-second rate of an owned agent.
func (e *Engine) SetPrice(ctx context.Context, id uint64, pricePerSecond *big.Int) (*Result, error) {
	return e.simple(ctx, "setPrice", id, func() (ledger.Call, error) {
		if err := checkAmount(pricePerSecond, "price per second"); err != nil {
			return ledger.Call{}, err
		}
		return ledger.SetPrice(id, pricePerSecond)
	})
}

// SetBasePrice changes the flat fee of an owned agent.
func (e *Engine) SetBasePrice(ctx context.Context, id uint64, basePrice *big.Int) (*Result, error) {
	return e.simple(ctx, "setBasePrice", id, func() (ledger.Call, error) {
		if err := checkAmount(basePrice, "base price"); err != nil {
			return ledger.Call{}, err
		}
		return ledger.SetBasePrice(id, basePrice)
	})
}

// Finalize closes an expired rental.
func (e *Engine) Finalize(ctx context.Context, id uint64) (*Result, error) {
	return e.simple(ctx, "finalizeRental", id, func() (ledger.Call, error) {
		return ledger.FinalizeRental(id)
	})
}

// Withdraw pays out the caller's accumulated earnings.
func (e *Engine) Withdraw(ctx context.Context) (*Result, error) {
	return e.simple(ctx, "withdrawEarnings", 0, func() (ledger.Call, error) {
		return ledger.WithdrawEarnings(), nil
	})
}

func (e *Engine) simple(ctx context.Context, action string, id uint64, build func() (ledger.Call, error)) (*Result, error) {
	a := e.start(action)
	a.res.AgentID = id
	a.to(StateValidatingInput, nil)

	from, err := a.account()
	if err != nil {
		return a.fail(err)
	}
	call, err := build()
	if err != nil {
		return a.fail(err)
	}
	return a.settle(ctx, from, call)
}

func checkAmount(v *big.Int, what string) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("%w: %s must be non-negative", units.ErrInvalidAmount, what)
	}
	if !units.FitsUint256(v) {
		return fmt.Errorf("%w: %s is too large", units.ErrInvalidAmount, what)
	}
	return nil
}

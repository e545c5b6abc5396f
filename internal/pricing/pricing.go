// Package pricing computes what a renter owes for a rental and refuses
// totals that are implausibly large before anything is submitted.
package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

var ErrPriceSanityExceeded = errors.New("price sanity bound exceeded")

// DefaultMaxCost is the default sanity bound: 100 whole tokens.
var DefaultMaxCost = new(big.Int).Mul(big.NewInt(100), units.Unit)

// Cost returns basePrice + pricePerSecond * durationSeconds.
func Cost(pricePerSecond, basePrice *big.Int, durationSeconds int64) (*big.Int, error) {
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("%w: %d seconds", units.ErrInvalidDuration, durationSeconds)
	}
	if pricePerSecond == nil || pricePerSecond.Sign() < 0 {
		return nil, fmt.Errorf("%w: price per second must be non-negative", units.ErrInvalidAmount)
	}
	if basePrice == nil || basePrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: base price must be non-negative", units.ErrInvalidAmount)
	}

	total := new(big.Int).Mul(pricePerSecond, big.NewInt(durationSeconds))
	return total.Add(total, basePrice), nil
}

// ExtensionCost is the cost of extending an active rental; no base fee applies.
func ExtensionCost(pricePerSecond *big.Int, extraSeconds int64) (*big.Int, error) {
	return Cost(pricePerSecond, new(big.Int), extraSeconds)
}

// SanityError reports a total above the configured bound.
type SanityError struct {
	Total *big.Int
	Max   *big.Int
}

func (e *SanityError) Error() string {
	return fmt.Sprintf("%s: total %s exceeds limit %s",
		ErrPriceSanityExceeded, units.FormatAmount(e.Total), units.FormatAmount(e.Max))
}

func (e *SanityError) Unwrap() error {
	return ErrPriceSanityExceeded
}

// Guard rejects totals above Max. A nil Max uses DefaultMaxCost.
type Guard struct {
	Max *big.Int
}

// NewGuard creates a guard with the given bound.
func NewGuard(bound *big.Int) Guard {
	return Guard{Max: bound}
}

func (g Guard) limit() *big.Int {
	if g.Max == nil {
		return DefaultMaxCost
	}
	return g.Max
}

// Check returns a *SanityError when total is above the bound.
func (g Guard) Check(total *big.Int) error {
	bound := g.limit()
	if total.Cmp(bound) > 0 {
		return &SanityError{Total: new(big.Int).Set(total), Max: new(big.Int).Set(bound)}
	}
	return nil
}

package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Agent is the read-only projection of a registry listing.
type Agent struct {
	ID             uint64         `json:"id"`
	Owner          common.Address `json:"owner"`
	ContentRef     string         `json:"contentRef"`
	Score          *big.Int       `json:"score"`
	PricePerSecond *big.Int       `json:"pricePerSecond"`
	BasePrice      *big.Int       `json:"basePrice"`
	Available      bool           `json:"available"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Rental is the single active rental slot of an agent. A zero Renter means
// the slot has never been used.
type Rental struct {
	Renter    common.Address `json:"renter"`
	StartAt   time.Time      `json:"startAt"`
	EndAt     time.Time      `json:"endAt"`
	PricePaid *big.Int       `json:"pricePaid"`
}

// Active reports whether the rental window is still open at now.
func (r *Rental) Active(now time.Time) bool {
	if r == nil || r.Renter == (common.Address{}) {
		return false
	}
	return r.EndAt.After(now)
}

// TimeRemaining returns how long the rental has left, or zero.
func (r *Rental) TimeRemaining(now time.Time) time.Duration {
	if !r.Active(now) {
		return 0
	}
	return r.EndAt.Sub(now)
}

// Status is the rented/free state shown to users.
type Status string

const (
	StatusFree        Status = "free"
	StatusRented      Status = "rented"
	StatusUnavailable Status = "unavailable"
)

// StatusAt derives the status from the rental window first: an open window
// means rented regardless of the availability flag.
func StatusAt(agent *Agent, rental *Rental, now time.Time) Status {
	if rental.Active(now) {
		return StatusRented
	}
	if agent != nil && !agent.Available {
		return StatusUnavailable
	}
	return StatusFree
}

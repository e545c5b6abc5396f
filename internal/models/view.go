package models

import (
	"time"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

// AgentView is an agent plus its derived rental status, with token amounts
// rendered as strings so no client loses precision.
type AgentView struct {
	ID                uint64         `json:"id"`
	Owner             string         `json:"owner"`
	ContentRef        string         `json:"contentRef"`
	Score             string         `json:"score"`
	PricePerSecond    string         `json:"pricePerSecond"`
	PricePerSecondWei string         `json:"pricePerSecondSmallestUnit"`
	BasePrice         string         `json:"basePrice"`
	BasePriceWei      string         `json:"basePriceSmallestUnit"`
	Available         bool           `json:"available"`
	CreatedAt         time.Time      `json:"createdAt"`
	Status            Status         `json:"status"`
	Renter            string         `json:"renter,omitempty"`
	RentalEndsAt      *time.Time     `json:"rentalEndsAt,omitempty"`
	TimeRemainingSecs int64          `json:"timeRemainingSeconds"`
	Metadata          *AgentMetadata `json:"metadata,omitempty"`
}

// NewAgentView builds the view of agent at now.
func NewAgentView(agent *Agent, rental *Rental, now time.Time) AgentView {
	v := AgentView{
		ID:                agent.ID,
		Owner:             agent.Owner.Hex(),
		ContentRef:        agent.ContentRef,
		PricePerSecond:    units.FormatAmount(agent.PricePerSecond),
		PricePerSecondWei: bigString(agent.PricePerSecond),
		BasePrice:         units.FormatAmount(agent.BasePrice),
		BasePriceWei:      bigString(agent.BasePrice),
		Score:             bigString(agent.Score),
		Available:         agent.Available,
		CreatedAt:         agent.CreatedAt,
		Status:            StatusAt(agent, rental, now),
	}
	if rental.Active(now) {
		end := rental.EndAt
		v.Renter = rental.Renter.Hex()
		v.RentalEndsAt = &end
		v.TimeRemainingSecs = int64(rental.TimeRemaining(now).Seconds())
	}
	return v
}

package pricing

import (
	"math/big"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/units"
)

// Quote is a priced rental request ready to be attached to a transaction.
type Quote struct {
	PricePerSecond  *big.Int `json:"pricePerSecond"`
	BasePrice       *big.Int `json:"basePrice"`
	DurationSeconds int64    `json:"durationSeconds"`
	Total           *big.Int `json:"total"`
}

// NewQuote prices a rental (base > 0) or an extension (base = 0) and
// applies the guard.
func NewQuote(pricePerSecond, basePrice *big.Int, durationSeconds int64, g Guard) (*Quote, error) {
	total, err := Cost(pricePerSecond, basePrice, durationSeconds)
	if err != nil {
		return nil, err
	}
	if err := g.Check(total); err != nil {
		return nil, err
	}
	return &Quote{
		PricePerSecond:  new(big.Int).Set(pricePerSecond),
		BasePrice:       new(big.Int).Set(basePrice),
		DurationSeconds: durationSeconds,
		Total:           total,
	}, nil
}

// QuoteDisplay is Quote rendered in display token units.
type QuoteDisplay struct {
	PricePerSecond  string `json:"pricePerSecond"`
	BasePrice       string `json:"basePrice"`
	DurationSeconds int64  `json:"durationSeconds"`
	Total           string `json:"total"`
	TotalWei        string `json:"totalSmallestUnit"`
}

// Display formats the quote for humans.
func (q *Quote) Display() QuoteDisplay {
	return QuoteDisplay{
		PricePerSecond:  units.FormatAmount(q.PricePerSecond),
		BasePrice:       units.FormatAmount(q.BasePrice),
		DurationSeconds: q.DurationSeconds,
		Total:           units.FormatAmount(q.Total),
		TotalWei:        q.Total.String(),
	}
}

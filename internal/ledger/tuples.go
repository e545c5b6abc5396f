package ledger

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// agentTuple mirrors AgentRegistryRentable.Agent; field names must match
// the ABI component names for abi.ConvertType.
type agentTuple struct {
	Id             *big.Int
	Owner          common.Address
	IpfsHash       string
	Score          *big.Int
	PricePerSecond *big.Int
	BasePrice      *big.Int
	Available      bool
	CreatedAt      *big.Int
}

func (t agentTuple) model() models.Agent {
	return models.Agent{
		ID:             bigUint64(t.Id),
		Owner:          t.Owner,
		ContentRef:     t.IpfsHash,
		Score:          orZero(t.Score),
		PricePerSecond: orZero(t.PricePerSecond),
		BasePrice:      orZero(t.BasePrice),
		Available:      t.Available,
		CreatedAt:      unixTime(t.CreatedAt),
	}
}

// rentalTuple mirrors AgentRegistryRentable.Rental.
type rentalTuple struct {
	Renter    common.Address
	StartAt   *big.Int
	EndAt     *big.Int
	PricePaid *big.Int
}

func (t rentalTuple) model() models.Rental {
	return models.Rental{
		Renter:    t.Renter,
		StartAt:   unixTime(t.StartAt),
		EndAt:     unixTime(t.EndAt),
		PricePaid: orZero(t.PricePaid),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bigUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	if !v.IsInt64() {
		return time.Unix(math.MaxInt32, 0).UTC()
	}
	return time.Unix(v.Int64(), 0).UTC()
}

func secondsDuration(v *big.Int) time.Duration {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	maxSecs := int64(math.MaxInt64 / int64(time.Second))
	if !v.IsInt64() || v.Int64() > maxSecs {
		return time.Duration(maxSecs) * time.Second
	}
	return time.Duration(v.Int64()) * time.Second
}

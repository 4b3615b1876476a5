package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position tracks one user's stake in one market. Stakes and Shares are
// per-outcome slices using the market's outcome indexing. A position becomes
// terminal once Claimed or Refunded is set.
type Position struct {
	MarketID     string         `json:"market_id"`
	User         common.Address `json:"user"`
	Stakes       []uint64       `json:"stakes"`
	Shares       []uint64       `json:"shares"`
	TotalStaked  uint64         `json:"total_staked"`
	BonusAccrued uint64         `json:"bonus_accrued"`
	LastBetAt    time.Time      `json:"last_bet_at"`
	Claimed      bool           `json:"claimed"`
	Refunded     bool           `json:"refunded"`
}

// NewPosition returns an empty position sized for a market with the given
// outcome count.
func NewPosition(marketID string, user common.Address, outcomes int) Position {
	return Position{
		MarketID: marketID,
		User:     user,
		Stakes:   make([]uint64, outcomes),
		Shares:   make([]uint64, outcomes),
	}
}

// SharesOn returns the user's share balance on the given outcome, treating
// out-of-range indexes as zero.
func (p *Position) SharesOn(outcome int) uint64 {
	if outcome < 0 || outcome >= len(p.Shares) {
		return 0
	}
	return p.Shares[outcome]
}

// Terminal reports whether the position has been paid out or refunded.
func (p *Position) Terminal() bool {
	return p.Claimed || p.Refunded
}

// Package domain defines the entities, interfaces, and sentinel errors shared
// by every component of the prediction-market engine.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BpsDenominator is the fixed-point denominator used for every
// percentage-like field in the engine. 10000 bps == 100%.
const BpsDenominator = 10000

// Outcome-count bounds for a market.
const (
	MinOutcomes = 2
	MaxOutcomes = 10
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusPending   MarketStatus = "pending"
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusLocked    MarketStatus = "locked"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusDisputed  MarketStatus = "disputed"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// MarketType tags a market with the part of the game economy it settles.
type MarketType string

const (
	MarketTypeGeneral   MarketType = "general"
	MarketTypeColonyWar MarketType = "colony_war"
	MarketTypeHarvest   MarketType = "harvest"
	MarketTypeDuel      MarketType = "duel"
)

// Outcome is one side of a market: the value staked on it, the share units
// issued against that stake, and its implied probability in bps.
type Outcome struct {
	Label          string `json:"label"`
	Pool           uint64 `json:"pool"`
	Shares         uint64 `json:"shares"`
	ImpliedProbBps uint32 `json:"implied_prob_bps"`
}

// Market is the root record for a single prediction market. Outcomes are
// indexed 0..len(Outcomes)-1 and every per-outcome amount elsewhere in the
// engine uses the same index.
type Market struct {
	ID             string         `json:"id"`
	Type           MarketType     `json:"type"`
	Status         MarketStatus   `json:"status"`
	QuestionHash   common.Hash    `json:"question_hash"`
	Outcomes       []Outcome      `json:"outcomes"`
	OpenTime       time.Time      `json:"open_time"`
	LockTime       time.Time      `json:"lock_time"`
	ResolutionTime time.Time      `json:"resolution_time"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Creator        common.Address `json:"creator"`
	Resolver       common.Address `json:"resolver"`
	CreatorFeeBps  uint32         `json:"creator_fee_bps"`
	ProtocolFeeBps uint32         `json:"protocol_fee_bps"`
	TotalPool      uint64         `json:"total_pool"`
	CreatorBond    uint64         `json:"creator_bond"`
	MinBet         uint64         `json:"min_bet"`
	MaxBet         uint64         `json:"max_bet"`
	LinkedEntity   string         `json:"linked_entity,omitempty"`
	WinningOutcome *int           `json:"winning_outcome,omitempty"`
	DisputeWindow  time.Duration  `json:"dispute_window"`
	DisputeCount   int            `json:"dispute_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ValidOutcome reports whether idx addresses one of the market's outcomes.
func (m *Market) ValidOutcome(idx int) bool {
	return idx >= 0 && idx < len(m.Outcomes)
}

// Bettable reports whether the market currently accepts bets.
func (m *Market) Bettable(now time.Time) bool {
	return m.Status == MarketStatusOpen && now.Before(m.LockTime)
}

// DisputeDeadline returns the last instant at which a resolution may be
// challenged. The zero time is returned for unresolved markets.
func (m *Market) DisputeDeadline() time.Time {
	if m.ResolvedAt == nil {
		return time.Time{}
	}
	return m.ResolvedAt.Add(m.DisputeWindow)
}

// Settled reports whether the market has reached a terminal state: cancelled,
// or resolved with its dispute window elapsed and no dispute in flight.
func (m *Market) Settled(now time.Time) bool {
	switch m.Status {
	case MarketStatusCancelled:
		return true
	case MarketStatusResolved:
		return now.After(m.DisputeDeadline())
	default:
		return false
	}
}

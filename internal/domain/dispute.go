package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Dispute challenges a market's recorded resolution. Disputes are stored as
// an indexed list per market; Index is the position in that list.
type Dispute struct {
	MarketID        string         `json:"market_id"`
	Index           int            `json:"index"`
	Disputer        common.Address `json:"disputer"`
	ProposedOutcome int            `json:"proposed_outcome"`
	Bond            uint64         `json:"bond"`
	CreatedAt       time.Time      `json:"created_at"`
	VotesFor        uint64         `json:"votes_for"`
	VotesAgainst    uint64         `json:"votes_against"`
	Resolved        bool           `json:"resolved"`
	Upheld          bool           `json:"upheld"`
}

// VotingDeadline returns the end of the dispute's voting window.
func (d *Dispute) VotingDeadline(window time.Duration) time.Time {
	return d.CreatedAt.Add(window)
}

// DisputeVote records a single stake-weighted vote on a dispute. One vote per
// user per dispute.
type DisputeVote struct {
	MarketID     string         `json:"market_id"`
	DisputeIndex int            `json:"dispute_index"`
	Voter        common.Address `json:"voter"`
	Weight       uint64         `json:"weight"`
	For          bool           `json:"for"`
	CastAt       time.Time      `json:"cast_at"`
}

// Package arbitration implements the dispute-vote tally rules and the
// resolver reputation adjustments they trigger.
package arbitration

import (
	"math"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
)

const (
	// BondBps is the dispute bond as a fraction of the market's total pool.
	BondBps = 100

	// QuorumBps is the minimum voting weight, as a fraction of the total
	// pool, required to finalize a dispute before its window elapses.
	QuorumBps = 1000

	// MajorityBps is the votes-for share required to uphold a dispute.
	MajorityBps = 6000

	// DisputerBonusBps is the bonus paid on top of the returned bond when a
	// dispute is upheld.
	DisputerBonusBps = 5000

	// ReputationPenalty is deducted from a resolver who loses a dispute.
	ReputationPenalty = 1000

	// ReputationReward is granted to a resolver whose resolution survives a
	// dispute.
	ReputationReward = 500
)

// BondAmount returns the bond a disputer must post: 1% of the total pool.
func BondAmount(totalPool uint64) (uint64, error) {
	return fixedpoint.MulDiv(totalPool, BondBps, domain.BpsDenominator)
}

// QuorumMet reports whether accumulated voting weight reaches 10% of the
// market's total pool.
func QuorumMet(votesFor, votesAgainst, totalPool uint64) bool {
	total, err := fixedpoint.Add(votesFor, votesAgainst)
	if err != nil {
		return true // saturated voting weight trivially exceeds any quorum
	}
	threshold, err := fixedpoint.MulDiv(totalPool, QuorumBps, domain.BpsDenominator)
	if err != nil {
		return false
	}
	return total >= threshold
}

// Upheld reports whether the vote overturns the resolution: votesFor must be
// at least 60% of all weight cast. No votes at all means rejection, so a
// dispute forced through after an abstention-only window fails.
func Upheld(votesFor, votesAgainst uint64) bool {
	total, err := fixedpoint.Add(votesFor, votesAgainst)
	if err != nil {
		// Saturated weight still tallies; the ratio against MaxUint64 is
		// exact enough for a 60% threshold.
		total = math.MaxUint64
	}
	if total == 0 {
		return false
	}
	ratio, err := fixedpoint.MulDiv(votesFor, domain.BpsDenominator, total)
	if err != nil {
		return false
	}
	return ratio >= MajorityBps
}

// DisputerReward returns the amount paid to a successful disputer: the bond
// plus a 50% bonus.
func DisputerReward(bond uint64) (uint64, error) {
	bonus, err := fixedpoint.MulDiv(bond, DisputerBonusBps, domain.BpsDenominator)
	if err != nil {
		return 0, err
	}
	return fixedpoint.Add(bond, bonus)
}

// ApplyLost records a lost dispute on the resolver's profile: reputation
// drops by ReputationPenalty with a floor of zero.
func ApplyLost(p *domain.ResolverProfile) {
	p.DisputesLost++
	if p.Reputation > ReputationPenalty {
		p.Reputation -= ReputationPenalty
	} else {
		p.Reputation = 0
	}
}

// ApplyDefended records a rejected dispute on the resolver's profile:
// reputation rises by ReputationReward, capped at the reputation ceiling.
func ApplyDefended(p *domain.ResolverProfile) {
	p.CorrectResolutions++
	p.Reputation += ReputationReward
	if p.Reputation > domain.ReputationCap {
		p.Reputation = domain.ReputationCap
	}
}

package domain

import "github.com/ethereum/go-ethereum/common"

// ReputationCap is the ceiling for a resolver's reputation score.
const ReputationCap = 9500

// ResolverProfile accumulates a resolver's track record across markets.
// Reputation moves with dispute outcomes and is clamped to [0, ReputationCap].
type ResolverProfile struct {
	Address            common.Address `json:"address"`
	MarketsResolved    uint64         `json:"markets_resolved"`
	TotalVolume        uint64         `json:"total_volume"`
	DisputesLost       uint64         `json:"disputes_lost"`
	CorrectResolutions uint64         `json:"correct_resolutions"`
	Reputation         uint32         `json:"reputation"`
	Trusted            bool           `json:"trusted"`
}

// UserProfile accumulates a bettor's lifetime statistics. Mutated on claim.
type UserProfile struct {
	Address             common.Address `json:"address"`
	TotalWagered        uint64         `json:"total_wagered"`
	TotalWon            uint64         `json:"total_won"`
	TotalLost           uint64         `json:"total_lost"`
	MarketsParticipated uint64         `json:"markets_participated"`
	MarketsWon          uint64         `json:"markets_won"`
	CurrentStreak       uint32         `json:"current_streak"`
	BestStreak          uint32         `json:"best_streak"`
	WinRateBps          uint32         `json:"win_rate_bps"`
}

// RecordWin folds a winning claim into the profile.
func (u *UserProfile) RecordWin(staked, payout uint64) {
	u.TotalWagered += staked
	u.TotalWon += payout
	u.MarketsParticipated++
	u.MarketsWon++
	u.CurrentStreak++
	if u.CurrentStreak > u.BestStreak {
		u.BestStreak = u.CurrentStreak
	}
	u.recomputeWinRate()
}

// RecordLoss folds a losing claim into the profile.
func (u *UserProfile) RecordLoss(staked uint64) {
	u.TotalWagered += staked
	u.TotalLost += staked
	u.MarketsParticipated++
	u.CurrentStreak = 0
	u.recomputeWinRate()
}

func (u *UserProfile) recomputeWinRate() {
	if u.MarketsParticipated == 0 {
		u.WinRateBps = 0
		return
	}
	u.WinRateBps = uint32(u.MarketsWon * BpsDenominator / u.MarketsParticipated)
}

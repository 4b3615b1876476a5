// Package timeweight computes the time-weighted share multiplier applied to
// bets and the staking-bonus amounts layered on top of them. Early bets earn
// up to 150% weight; the multiplier decays linearly over the betting window
// and bottoms out at 50% at lock time.
package timeweight

import (
	"time"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
)

const (
	// MaxMultiplierBps is the weight applied at or before market open.
	MaxMultiplierBps = 15000

	// MinMultiplierBps is the weight applied at or after lock time.
	MinMultiplierBps = 5000

	// MaxBonusBps caps the staking bonus at 20% of the raw bet amount.
	MaxBonusBps = 2000
)

// Multiplier returns the bps multiplier for a bet placed at now within the
// [open, lock) betting window. Outside the window the multiplier clamps to
// the boundary values. A zero-length window yields the floor.
func Multiplier(now, open, lock time.Time) uint32 {
	if !now.After(open) {
		return MaxMultiplierBps
	}
	if !now.Before(lock) {
		return MinMultiplierBps
	}
	window := lock.Sub(open)
	if window <= 0 {
		return MinMultiplierBps
	}
	elapsedBps := uint64(now.Sub(open)) * domain.BpsDenominator / uint64(window)
	return uint32(MaxMultiplierBps - elapsedBps)
}

// Weight applies the time multiplier to amount: amount * multiplier / 10000.
func Weight(amount uint64, now, open, lock time.Time) (uint64, error) {
	return fixedpoint.MulDiv(amount, uint64(Multiplier(now, open, lock)), domain.BpsDenominator)
}

// BonusBps converts a staked-token level into a bonus rate, capped at
// MaxBonusBps.
func BonusBps(level, perLevelBps uint32) uint32 {
	bps := uint64(level) * uint64(perLevelBps)
	if bps > MaxBonusBps {
		return MaxBonusBps
	}
	return uint32(bps)
}

// BonusAmount returns the staking bonus for a raw bet amount at the given
// level. The bonus inflates share issuance only, never the liability pool.
func BonusAmount(amount uint64, level, perLevelBps uint32) (uint64, error) {
	return fixedpoint.MulDiv(amount, uint64(BonusBps(level, perLevelBps)), domain.BpsDenominator)
}

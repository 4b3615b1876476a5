// Package ammmath implements the AMM pool arithmetic: LP share issuance and
// redemption, the pool invariant, and reserve-ratio swap pricing.
package ammmath

import (
	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
)

// InitialReserves splits a first deposit equally across n outcome reserves.
// The truncation remainder lands on the first reserve so the reserves sum to
// exactly amount.
func InitialReserves(amount uint64, n int) []uint64 {
	reserves := make([]uint64, n)
	if n == 0 {
		return reserves
	}
	each := amount / uint64(n)
	for i := range reserves {
		reserves[i] = each
	}
	reserves[0] += amount - each*uint64(n)
	return reserves
}

// InvariantK computes the pool invariant. For exactly two outcomes it is the
// constant product reserve0*reserve1. For three or more outcomes the true
// product would overflow, so the pool carries outcomeCount*sum(reserves)
// instead; swap pricing for those pools never consults k.
func InvariantK(reserves []uint64) (uint64, error) {
	if len(reserves) == 2 {
		return fixedpoint.Mul(reserves[0], reserves[1])
	}
	var sum uint64
	for _, r := range reserves {
		var err error
		if sum, err = fixedpoint.Add(sum, r); err != nil {
			return 0, err
		}
	}
	return fixedpoint.Mul(uint64(len(reserves)), sum)
}

// LPSharesForDeposit returns the LP shares minted for a deposit of amount.
// The first provider receives shares one-to-one; later providers receive
// amount * totalLPShares / liquidity.
func LPSharesForDeposit(amount, totalLPShares, liquidity uint64) (uint64, error) {
	if totalLPShares == 0 {
		return amount, nil
	}
	if liquidity == 0 {
		return 0, domain.ErrInsufficientLiquidity
	}
	return fixedpoint.MulDiv(amount, totalLPShares, liquidity)
}

// Removal is the proportional redemption for burning LP shares.
type Removal struct {
	Amount       uint64   // value returned to the provider
	ReserveTakes []uint64 // per-outcome reserve reduction
}

// RemovalFor computes the proportional burn of lpShares against the pool.
func RemovalFor(lpShares, totalLPShares, liquidity uint64, reserves []uint64) (Removal, error) {
	if totalLPShares == 0 || lpShares == 0 || lpShares > totalLPShares {
		return Removal{}, domain.ErrInsufficientShares
	}
	amount, err := fixedpoint.MulDiv(liquidity, lpShares, totalLPShares)
	if err != nil {
		return Removal{}, err
	}
	takes := make([]uint64, len(reserves))
	for i, r := range reserves {
		if takes[i], err = fixedpoint.MulDiv(r, lpShares, totalLPShares); err != nil {
			return Removal{}, err
		}
	}
	return Removal{Amount: amount, ReserveTakes: takes}, nil
}

// SwapOutput prices a swap of amountIn from one outcome reserve into another
// using the reserve-ratio formula with the fee taken from the input side:
//
//	inWithFee = amountIn * (10000 - feeBps) / 10000
//	out       = reserveTo * inWithFee / (reserveFrom + inWithFee)
func SwapOutput(amountIn, reserveFrom, reserveTo uint64, feeBps uint32) (uint64, error) {
	if amountIn == 0 {
		return 0, domain.ErrInvalidAmount
	}
	if reserveFrom == 0 || reserveTo == 0 {
		return 0, domain.ErrInsufficientLiquidity
	}
	if uint64(feeBps) >= domain.BpsDenominator {
		return 0, domain.ErrInvalidAmount
	}
	inWithFee, err := fixedpoint.MulDiv(amountIn, domain.BpsDenominator-uint64(feeBps), domain.BpsDenominator)
	if err != nil {
		return 0, err
	}
	den, err := fixedpoint.Add(reserveFrom, inWithFee)
	if err != nil {
		return 0, err
	}
	return fixedpoint.MulDiv(reserveTo, inWithFee, den)
}

// Package parimutuel implements the share-ledger arithmetic: proportional
// share issuance against per-outcome pools, the stake-imbalance guard,
// implied-probability recomputation, and the payout fee waterfall.
package parimutuel

import (
	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/engine/fixedpoint"
)

// MaxStakeShareBps is the ceiling on a single outcome's share of the total
// pool once other outcomes hold stake.
const MaxStakeShareBps = 9000

// SharesForBet returns the share units issued for a bet whose time-weighted,
// bonus-inclusive amount is weighted. An empty outcome pool issues shares
// one-to-one with the weighted amount; otherwise issuance is proportional to
// the outcome's existing shares-per-unit-staked ratio.
func SharesForBet(weighted, outcomePool, outcomeShares uint64) (uint64, error) {
	if outcomePool == 0 {
		return weighted, nil
	}
	return fixedpoint.MulDiv(weighted, outcomeShares, outcomePool)
}

// CheckBalance rejects a raw bet of amount on pools[target] that would push
// the outcome's post-bet share of the total pool above MaxStakeShareBps.
// When every other outcome is empty the bet is always allowed, so the first
// bettors can bootstrap a market.
func CheckBalance(pools []uint64, target int, amount uint64) error {
	if target < 0 || target >= len(pools) {
		return domain.ErrInvalidOutcome
	}

	var others uint64
	for i, p := range pools {
		if i == target {
			continue
		}
		var err error
		if others, err = fixedpoint.Add(others, p); err != nil {
			return domain.ErrAmountOverflow
		}
	}
	if others == 0 {
		return nil
	}

	post, err := fixedpoint.Add(pools[target], amount)
	if err != nil {
		return domain.ErrAmountOverflow
	}
	total, err := fixedpoint.Add(others, post)
	if err != nil {
		return domain.ErrAmountOverflow
	}
	shareBps, err := fixedpoint.MulDiv(post, domain.BpsDenominator, total)
	if err != nil {
		return domain.ErrAmountOverflow
	}
	if shareBps > MaxStakeShareBps {
		return domain.ErrStakeImbalance
	}
	return nil
}

// ImpliedProbabilities recomputes each outcome's implied probability in bps
// from the share distribution. With no shares outstanding every outcome gets
// the equal split used at market creation. The final outcome absorbs the
// truncation remainder so the probabilities sum to exactly 10000 bps.
func ImpliedProbabilities(shares []uint64) []uint32 {
	n := len(shares)
	if n == 0 {
		return nil
	}

	probs := make([]uint32, n)
	var total uint64
	for _, s := range shares {
		total += s
	}

	if total == 0 {
		equal := uint32(domain.BpsDenominator / n)
		var sum uint32
		for i := range probs {
			probs[i] = equal
			sum += equal
		}
		probs[n-1] += domain.BpsDenominator - sum
		return probs
	}

	var sum uint32
	for i, s := range shares {
		p, err := fixedpoint.MulDiv(s, domain.BpsDenominator, total)
		if err != nil {
			p = 0
		}
		probs[i] = uint32(p)
		sum += probs[i]
	}
	probs[n-1] += domain.BpsDenominator - sum
	return probs
}

// Payout returns the pari-mutuel payout for userShares of the winning
// outcome: userShares * totalPool / winningShares. Zero winning shares on
// the outcome itself yields zero.
func Payout(userShares, totalPool, winningShares uint64) (uint64, error) {
	if userShares == 0 {
		return 0, nil
	}
	if winningShares == 0 {
		return 0, domain.ErrInsufficientShares
	}
	return fixedpoint.MulDiv(userShares, totalPool, winningShares)
}

// Fees is the result of splitting a gross payout through the fee waterfall.
type Fees struct {
	Net         uint64
	ProtocolFee uint64
	CreatorFee  uint64
}

// Waterfall splits a gross payout into protocol fee, creator fee, and the
// net amount transferred to the user.
func Waterfall(payout uint64, protocolFeeBps, creatorFeeBps uint32) (Fees, error) {
	protocol, err := fixedpoint.MulDiv(payout, uint64(protocolFeeBps), domain.BpsDenominator)
	if err != nil {
		return Fees{}, err
	}
	creator, err := fixedpoint.MulDiv(payout, uint64(creatorFeeBps), domain.BpsDenominator)
	if err != nil {
		return Fees{}, err
	}
	net, err := fixedpoint.Sub(payout, protocol)
	if err != nil {
		return Fees{}, err
	}
	net, err = fixedpoint.Sub(net, creator)
	if err != nil {
		return Fees{}, err
	}
	return Fees{Net: net, ProtocolFee: protocol, CreatorFee: creator}, nil
}

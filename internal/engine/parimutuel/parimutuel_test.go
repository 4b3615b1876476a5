package parimutuel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

func TestSharesForBet(t *testing.T) {
	tests := []struct {
		name          string
		weighted      uint64
		pool, shares  uint64
		want          uint64
	}{
		{name: "empty pool issues one-to-one", weighted: 1500, pool: 0, shares: 0, want: 1500},
		{name: "proportional issuance", weighted: 1000, pool: 2000, shares: 3000, want: 1500},
		{name: "shares below pool", weighted: 1000, pool: 4000, shares: 2000, want: 500},
		{name: "zero weighted", weighted: 0, pool: 2000, shares: 3000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesForBet(tt.weighted, tt.pool, tt.shares)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name    string
		pools   []uint64
		target  int
		amount  uint64
		wantErr error
	}{
		{name: "bootstrap when others empty", pools: []uint64{0, 0}, target: 0, amount: 1_000_000},
		{name: "bootstrap with existing own pool", pools: []uint64{500, 0}, target: 0, amount: 1_000_000},
		{name: "within bound", pools: []uint64{1000, 1000}, target: 0, amount: 5000},
		{name: "exactly at 9000 bps", pools: []uint64{0, 1000}, target: 0, amount: 9000},
		{name: "just over 9000 bps", pools: []uint64{0, 1000}, target: 0, amount: 9100, wantErr: domain.ErrStakeImbalance},
		{name: "way over", pools: []uint64{8000, 1000}, target: 0, amount: 100_000, wantErr: domain.ErrStakeImbalance},
		{name: "bad index", pools: []uint64{1, 1}, target: 2, amount: 1, wantErr: domain.ErrInvalidOutcome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBalance(tt.pools, tt.target, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestImpliedProbabilitiesEqualSplit(t *testing.T) {
	// Two outcomes with no shares: 5000/5000.
	probs := ImpliedProbabilities([]uint64{0, 0})
	assert.Equal(t, []uint32{5000, 5000}, probs)

	// Three outcomes: 3333/3333/3334, remainder to the last.
	probs = ImpliedProbabilities([]uint64{0, 0, 0})
	assert.Equal(t, []uint32{3333, 3333, 3334}, probs)
}

func TestImpliedProbabilitiesSumToDenominator(t *testing.T) {
	cases := [][]uint64{
		{1, 1},
		{1500, 500},
		{7, 11, 13},
		{1_000_000, 1, 999_999, 123_456},
	}
	for _, shares := range cases {
		probs := ImpliedProbabilities(shares)
		var sum uint32
		for _, p := range probs {
			sum += p
		}
		require.Equal(t, uint32(domain.BpsDenominator), sum, "shares=%v", shares)
	}
}

func TestPayout(t *testing.T) {
	// 300 of 1000 winning shares over a 5000 pool pays 1500.
	got, err := Payout(300, 5000, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), got)

	// No winning shares held: zero payout, no error.
	got, err = Payout(0, 5000, 1000)
	require.NoError(t, err)
	assert.Zero(t, got)

	// Winning outcome with no shares at all cannot be divided.
	_, err = Payout(10, 5000, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

func TestWaterfall(t *testing.T) {
	fees, err := Waterfall(10_000, 200, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), fees.ProtocolFee)
	assert.Equal(t, uint64(100), fees.CreatorFee)
	assert.Equal(t, uint64(9700), fees.Net)
}

func TestPayoutConservation(t *testing.T) {
	// Splitting the whole winning pool across holders never pays out more
	// than the pool, fees included.
	const totalPool = 1_000_003
	const winningShares = 7777
	holders := []uint64{1234, 555, 3000, 2988} // sums to winningShares

	var distributed uint64
	for _, h := range holders {
		gross, err := Payout(h, totalPool, winningShares)
		require.NoError(t, err)
		fees, err := Waterfall(gross, 250, 150)
		require.NoError(t, err)
		distributed += fees.Net + fees.ProtocolFee + fees.CreatorFee
	}
	assert.LessOrEqual(t, distributed, uint64(totalPool))
}

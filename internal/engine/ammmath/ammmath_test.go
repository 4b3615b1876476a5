package ammmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

func TestInitialReserves(t *testing.T) {
	r := InitialReserves(10_000, 2)
	assert.Equal(t, []uint64{5000, 5000}, r)

	// Remainder stays in the pool rather than vanishing.
	r = InitialReserves(10_000, 3)
	assert.Equal(t, []uint64{3334, 3333, 3333}, r)
	var sum uint64
	for _, v := range r {
		sum += v
	}
	assert.Equal(t, uint64(10_000), sum)
}

func TestInvariantK(t *testing.T) {
	k, err := InvariantK([]uint64{1000, 2000})
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), k, "two outcomes use the constant product")

	k, err = InvariantK([]uint64{1000, 2000, 3000})
	require.NoError(t, err)
	assert.Equal(t, uint64(18_000), k, "three-plus outcomes use count*sum")
}

func TestLPSharesForDeposit(t *testing.T) {
	// First provider mints one-to-one.
	shares, err := LPSharesForDeposit(5000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), shares)

	// Later providers mint pro rata.
	shares, err = LPSharesForDeposit(2500, 5000, 5000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), shares)

	shares, err = LPSharesForDeposit(1000, 6000, 12_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), shares)
}

func TestSwapOutputReferenceFormula(t *testing.T) {
	// reserves (1000,1000), fee 30 bps:
	// out = 1000 * (in*9970/10000) / (1000 + in*9970/10000)
	for _, amountIn := range []uint64{1, 10, 100, 500, 1000, 5000} {
		inWithFee := amountIn * 9970 / 10000
		want := 1000 * inWithFee / (1000 + inWithFee)

		got, err := SwapOutput(amountIn, 1000, 1000, 30)
		require.NoError(t, err)
		assert.Equal(t, want, got, "amountIn=%d", amountIn)
	}
}

func TestSwapProductNeverDecreases(t *testing.T) {
	// The fee must strictly grow the constant product for 2-outcome pools.
	reserveFrom, reserveTo := uint64(10_000), uint64(7000)
	for _, amountIn := range []uint64{1, 37, 500, 9999} {
		out, err := SwapOutput(amountIn, reserveFrom, reserveTo, 30)
		require.NoError(t, err)

		before := reserveFrom * reserveTo
		after := (reserveFrom + amountIn) * (reserveTo - out)
		require.GreaterOrEqual(t, after, before, "amountIn=%d", amountIn)
	}
}

func TestSwapOutputGuards(t *testing.T) {
	_, err := SwapOutput(0, 1000, 1000, 30)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = SwapOutput(100, 0, 1000, 30)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	_, err = SwapOutput(100, 1000, 0, 30)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestRemovalForRoundTrip(t *testing.T) {
	// Deposit then immediately withdraw the same LP shares: the original
	// amount comes back, modulo integer truncation.
	const deposit = 10_000
	reserves := InitialReserves(deposit, 2)
	lpShares, err := LPSharesForDeposit(deposit, 0, 0)
	require.NoError(t, err)

	rm, err := RemovalFor(lpShares, lpShares, deposit, reserves)
	require.NoError(t, err)
	assert.Equal(t, uint64(deposit), rm.Amount)
	assert.Equal(t, reserves, rm.ReserveTakes)
}

func TestRemovalForPartial(t *testing.T) {
	rm, err := RemovalFor(2500, 10_000, 40_000, []uint64{20_000, 20_000})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), rm.Amount)
	assert.Equal(t, []uint64{5000, 5000}, rm.ReserveTakes)
}

func TestRemovalForGuards(t *testing.T) {
	_, err := RemovalFor(0, 100, 100, []uint64{50, 50})
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	_, err = RemovalFor(101, 100, 100, []uint64{50, 50})
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

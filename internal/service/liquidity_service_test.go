package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

func TestAddLiquidityFirstProvider(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	lp, err := f.liquidity.AddLiquidity(ctx, alice, m.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), lp, "first provider mints shares one-to-one")

	pool, err := f.liquidity.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{500, 500}, pool.Reserves)
	assert.Equal(t, uint64(1000), pool.Liquidity)
	assert.Equal(t, uint64(1000), pool.TotalLPShares)
	assert.Equal(t, uint64(250000), pool.InvariantK)
	assert.Equal(t, uint32(30), pool.SwapFeeBps)
}

func TestAddLiquiditySecondProviderProportional(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	_, err := f.liquidity.AddLiquidity(ctx, alice, m.ID, 1000)
	require.NoError(t, err)
	lp, err := f.liquidity.AddLiquidity(ctx, bob, m.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), lp)

	pool, err := f.liquidity.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{750, 750}, pool.Reserves)
	assert.Equal(t, uint64(1500), pool.Liquidity)
	assert.Equal(t, uint64(1500), pool.TotalLPShares)
}

func TestRemoveLiquidityRoundTrip(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	lp, err := f.liquidity.AddLiquidity(ctx, alice, m.ID, 1000)
	require.NoError(t, err)

	returned, err := f.liquidity.RemoveLiquidity(ctx, alice, m.ID, lp)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), returned, "immediate removal returns the deposit")
	assert.Equal(t, uint64(1000), f.rail.transferred("liquidity_out:"+m.ID))

	pool, err := f.liquidity.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pool.Liquidity)
	assert.Equal(t, uint64(0), pool.TotalLPShares)
}

func TestAddLiquidityAfterFullRemovalReseeds(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	lp, err := f.liquidity.AddLiquidity(ctx, alice, m.ID, 1000)
	require.NoError(t, err)
	_, err = f.liquidity.RemoveLiquidity(ctx, alice, m.ID, lp)
	require.NoError(t, err)

	// The drained pool record persists; the next deposit seeds it afresh
	// instead of dividing by the zero share supply.
	lp, err = f.liquidity.AddLiquidity(ctx, bob, m.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), lp, "re-seeding mints shares one-to-one")

	pool, err := f.liquidity.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{500, 500}, pool.Reserves)
	assert.Equal(t, uint64(1000), pool.Liquidity)
	assert.Equal(t, uint64(1000), pool.TotalLPShares)
	assert.Equal(t, uint64(250000), pool.InvariantK)
}

func TestRemoveLiquidityGuards(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	lp, err := f.liquidity.AddLiquidity(ctx, alice, m.ID, 1000)
	require.NoError(t, err)

	_, err = f.liquidity.RemoveLiquidity(ctx, alice, m.ID, lp+1)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	require.NoError(t, f.markets.LockMarket(ctx, admin, m.ID))
	_, err = f.liquidity.RemoveLiquidity(ctx, alice, m.ID, lp)
	assert.ErrorIs(t, err, domain.ErrMarketNotOpen, "removal is blocked while locked")
}

func TestSwapSharesReferencePricing(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	// Seed reserves at (1000, 1000) and give alice shares to swap.
	_, err := f.liquidity.AddLiquidity(ctx, bob, m.ID, 2000)
	require.NoError(t, err)
	_, err = f.betting.PlaceBet(ctx, alice, m.ID, 0, 400)
	require.NoError(t, err)

	amountIn := uint64(500)
	inWithFee := amountIn * 9970 / 10000
	want := 1000 * inWithFee / (1000 + inWithFee)

	out, err := f.liquidity.SwapShares(ctx, alice, m.ID, 0, 1, amountIn)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	pool, err := f.liquidity.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), pool.Reserves[0])
	assert.Equal(t, uint64(1000)-want, pool.Reserves[1])

	// Fee keeps the constant product from decreasing.
	assert.GreaterOrEqual(t, pool.Reserves[0]*pool.Reserves[1], uint64(1000*1000))

	pos := f.positionOf(t, m.ID, alice)
	assert.Equal(t, uint64(100), pos.Shares[0]) // 600 issued at open - 500 swapped
	assert.Equal(t, want, pos.Shares[1])
}

func TestSwapSharesMovesImpliedProbabilities(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	_, err := f.liquidity.AddLiquidity(ctx, bob, m.ID, 2000)
	require.NoError(t, err)
	_, err = f.betting.PlaceBet(ctx, alice, m.ID, 0, 400)
	require.NoError(t, err)

	before := f.marketByID(t, m.ID)
	assert.Equal(t, uint32(domain.BpsDenominator), before.Outcomes[0].ImpliedProbBps)

	_, err = f.liquidity.SwapShares(ctx, alice, m.ID, 0, 1, 300)
	require.NoError(t, err)

	after := f.marketByID(t, m.ID)
	assert.Less(t, after.Outcomes[0].ImpliedProbBps, before.Outcomes[0].ImpliedProbBps)
	assert.Greater(t, after.Outcomes[1].ImpliedProbBps, uint32(0))
	var sum uint32
	for _, o := range after.Outcomes {
		sum += o.ImpliedProbBps
	}
	assert.Equal(t, uint32(domain.BpsDenominator), sum)
}

func TestSwapSharesGuards(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	_, err := f.liquidity.SwapShares(ctx, alice, m.ID, 0, 0, 100)
	assert.ErrorIs(t, err, domain.ErrSameOutcomeSwap)

	// No pool yet.
	_, err = f.betting.PlaceBet(ctx, alice, m.ID, 0, 400)
	require.NoError(t, err)
	_, err = f.liquidity.SwapShares(ctx, alice, m.ID, 0, 1, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	_, err = f.liquidity.AddLiquidity(ctx, bob, m.ID, 2000)
	require.NoError(t, err)

	// More shares than the caller holds.
	_, err = f.liquidity.SwapShares(ctx, alice, m.ID, 0, 1, 10_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

func TestEstimateSwapOutput(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	_, err := f.liquidity.AddLiquidity(ctx, bob, m.ID, 2000)
	require.NoError(t, err)

	inWithFee := uint64(500) * 9970 / 10000
	want := 1000 * inWithFee / (1000 + inWithFee)
	out, err := f.liquidity.EstimateSwapOutput(ctx, m.ID, 0, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	_, err = f.liquidity.EstimateSwapOutput(ctx, "missing", 0, 1, 500)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestAddLiquidityRailFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	f.rail.fail = true

	_, err := f.liquidity.AddLiquidity(context.Background(), alice, m.ID, 1000)
	require.ErrorIs(t, err, domain.ErrPaymentFailed)

	_, err = f.liquidity.GetPool(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

// disputedMarket opens a market, stakes alice 6000 on outcome 0 and bob 4000
// on outcome 1, and resolves it with outcome 0 winning.
func disputedMarket(t *testing.T, f *fixture) domain.Market {
	t.Helper()
	ctx := context.Background()

	m := f.createMarket(t)
	_, err := f.betting.PlaceBet(ctx, alice, m.ID, 0, 6000)
	require.NoError(t, err)
	_, err = f.betting.PlaceBet(ctx, bob, m.ID, 1, 4000)
	require.NoError(t, err)
	f.resolveAs(t, m.ID, 0)
	return f.marketByID(t, m.ID)
}

func TestDisputeResolutionPostsBond(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	d, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Index)
	assert.Equal(t, uint64(100), d.Bond, "bond is 1% of the 10000-unit pool")
	assert.Equal(t, domain.MarketStatusDisputed, f.marketByID(t, m.ID).Status)
	assert.Equal(t, 1, f.marketByID(t, m.ID).DisputeCount)
}

func TestDisputeResolutionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.createMarket(t)
	_, err := f.disputes.DisputeResolution(ctx, bob, open.ID, 1)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	m := disputedMarket(t, f)

	// Proposing the recorded winner is not a dispute.
	_, err = f.disputes.DisputeResolution(ctx, bob, m.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)

	_, err = f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)

	// Only one dispute in flight at a time.
	_, err = f.disputes.DisputeResolution(ctx, carol, m.ID, 1)
	assert.ErrorIs(t, err, domain.ErrMarketDisputed)
}

func TestDisputeWindowCloses(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)

	f.advance(25 * time.Hour)
	_, err := f.disputes.DisputeResolution(context.Background(), bob, m.ID, 1)
	assert.ErrorIs(t, err, domain.ErrDisputeWindowClosed)
}

func TestClaimBlockedWhileDisputed(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	_, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)

	_, err = f.betting.ClaimWinnings(ctx, alice, m.ID)
	assert.ErrorIs(t, err, domain.ErrMarketDisputed)
}

func TestVoteOnDispute(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	_, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.disputes.VoteOnDispute(ctx, alice, m.ID, 0, false))
	require.NoError(t, f.disputes.VoteOnDispute(ctx, bob, m.ID, 0, true))

	d, err := f.disputes.GetDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4000), d.VotesFor, "vote weight is the voter's total stake")
	assert.Equal(t, uint64(6000), d.VotesAgainst)

	err = f.disputes.VoteOnDispute(ctx, alice, m.ID, 0, true)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	// No stake in the market, no vote.
	err = f.disputes.VoteOnDispute(ctx, carol, m.ID, 0, true)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	f.advance(25 * time.Hour)
	err = f.disputes.VoteOnDispute(ctx, carol, m.ID, 0, true)
	assert.ErrorIs(t, err, domain.ErrDisputeWindowClosed)
}

func TestResolveDisputeUpheldSixtyPercent(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	_, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)

	// 6000 for, 4000 against: exactly the 60% threshold, upheld.
	require.NoError(t, f.disputes.VoteOnDispute(ctx, alice, m.ID, 0, true))
	require.NoError(t, f.disputes.VoteOnDispute(ctx, bob, m.ID, 0, false))

	upheld, err := f.disputes.ResolveDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.True(t, upheld)

	got := f.marketByID(t, m.ID)
	assert.Equal(t, domain.MarketStatusResolved, got.Status)
	require.NotNil(t, got.WinningOutcome)
	assert.Equal(t, 1, *got.WinningOutcome, "winning outcome flips to the proposed one")

	// Disputer receives bond plus 50% bonus.
	assert.Equal(t, uint64(150), f.rail.transferred("dispute_reward:"+m.ID))

	rp, err := f.profiles.GetResolverProfile(ctx, resolver)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rp.DisputesLost)
	assert.Equal(t, uint32(0), rp.Reputation, "penalty floors at zero")
}

func TestResolveDisputeRejectedTie(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	// Equal stakes make an exact 5000/5000 tie possible.
	_, err := f.betting.PlaceBet(ctx, alice, m.ID, 0, 5000)
	require.NoError(t, err)
	_, err = f.betting.PlaceBet(ctx, bob, m.ID, 1, 5000)
	require.NoError(t, err)
	f.resolveAs(t, m.ID, 0)

	_, err = f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.disputes.VoteOnDispute(ctx, bob, m.ID, 0, true))
	require.NoError(t, f.disputes.VoteOnDispute(ctx, alice, m.ID, 0, false))

	upheld, err := f.disputes.ResolveDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.False(t, upheld, "a tie never reaches the 60% majority")

	got := f.marketByID(t, m.ID)
	require.NotNil(t, got.WinningOutcome)
	assert.Equal(t, 0, *got.WinningOutcome, "original outcome stands")

	// Forfeited bond goes to the resolver, whose reputation rises.
	assert.Equal(t, uint64(100), f.rail.transferred("dispute_bond_forfeit:"+m.ID))
	rp, err := f.profiles.GetResolverProfile(ctx, resolver)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rp.CorrectResolutions)
	assert.Equal(t, uint32(500), rp.Reputation)
}

func TestResolveDisputeReputationCap(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	// Resolver sits just under the cap going in.
	err := f.ledger.Update(ctx, func(tx domain.LedgerTx) error {
		rp, err := tx.GetResolverProfile(ctx, resolver)
		if err != nil {
			return err
		}
		rp.Address = resolver
		rp.Reputation = 9200
		return tx.PutResolverProfile(ctx, rp)
	})
	require.NoError(t, err)

	_, err = f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.disputes.VoteOnDispute(ctx, alice, m.ID, 0, false))

	upheld, err := f.disputes.ResolveDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.False(t, upheld)

	rp, err := f.profiles.GetResolverProfile(ctx, resolver)
	require.NoError(t, err)
	assert.Equal(t, uint32(9500), rp.Reputation, "reward caps at 9500")
}

func TestResolveDisputeQuorum(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	_, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)

	// No votes yet and the window is still open: quorum gate holds.
	_, err = f.disputes.ResolveDispute(ctx, m.ID, 0)
	assert.ErrorIs(t, err, domain.ErrQuorumNotReached)

	// A single 4000-weight vote clears the 1000-unit quorum.
	require.NoError(t, f.disputes.VoteOnDispute(ctx, bob, m.ID, 0, true))
	upheld, err := f.disputes.ResolveDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.True(t, upheld)
}

func TestResolveDisputeForcedAfterWindow(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	_, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)

	// Abstention-only: after the voting window anyone may force resolution
	// and the dispute counts as rejected.
	f.advance(25 * time.Hour)
	upheld, err := f.disputes.ResolveDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.False(t, upheld)

	_, err = f.disputes.ResolveDispute(ctx, m.ID, 0)
	assert.ErrorIs(t, err, domain.ErrDisputeResolved)
}

func TestUpheldDisputeOpensNewClaimCycle(t *testing.T) {
	f := newFixture(t)
	m := disputedMarket(t, f)
	ctx := context.Background()

	_, err := f.disputes.DisputeResolution(ctx, bob, m.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.disputes.VoteOnDispute(ctx, alice, m.ID, 0, true))
	require.NoError(t, f.disputes.VoteOnDispute(ctx, bob, m.ID, 0, false))

	upheld, err := f.disputes.ResolveDispute(ctx, m.ID, 0)
	require.NoError(t, err)
	require.True(t, upheld)

	// Bob now holds the winning shares and can claim under the new outcome.
	net, err := f.betting.ClaimWinnings(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.Greater(t, net, uint64(0))
}

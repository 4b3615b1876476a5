package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/store/memory"
)

var (
	creator  = addr(1)
	resolver = addr(2)
	alice    = addr(3)
	bob      = addr(4)
	carol    = addr(5)
	admin    = addr(9)
)

type fixture struct {
	ledger *memory.Store
	locks  *fakeLocks
	cache  *fakeCache
	rail   *fakeRail
	oracle *fakeOracle
	auth   *fakeAuth
	bus    *fakeBus
	now    time.Time

	markets   *MarketService
	betting   *BettingService
	liquidity *LiquidityService
	disputes  *DisputeService
	profiles  *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ledger: memory.New(),
		locks:  newFakeLocks(),
		cache:  newFakeCache(),
		rail:   &fakeRail{},
		oracle: &fakeOracle{},
		auth:   newFakeAuth(creator),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.auth.admins[admin] = true
	f.bus = newFakeBus()

	logger := testLogger()
	settings := testSettings()
	events := NewPublisher(f.bus, logger)
	clock := func() time.Time { return f.now }

	f.markets = NewMarketService(f.ledger, f.locks, f.cache, f.rail, f.auth, events, settings, logger)
	f.markets.now = clock
	f.betting = NewBettingService(f.ledger, f.locks, f.cache, f.rail, f.oracle, f.auth, events, settings, logger)
	f.betting.now = clock
	f.liquidity = NewLiquidityService(f.ledger, f.locks, f.cache, f.rail, f.auth, events, settings, logger)
	f.liquidity.now = clock
	f.disputes = NewDisputeService(f.ledger, f.locks, f.cache, f.rail, f.auth, events, settings, logger)
	f.disputes.now = clock
	f.profiles = NewProfileService(f.ledger)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// createMarket opens a two-outcome market with a one-hour betting window.
func (f *fixture) createMarket(t *testing.T) domain.Market {
	t.Helper()
	return f.createMarketN(t, 2)
}

func (f *fixture) createMarketN(t *testing.T, outcomes int) domain.Market {
	t.Helper()

	labels := make([]string, outcomes)
	for i := range labels {
		labels[i] = string(rune('A' + i))
	}
	m, err := f.markets.CreateMarket(context.Background(), CreateMarketParams{
		Creator:        creator,
		Type:           domain.MarketTypeGeneral,
		Question:       "who holds the ridge at dawn",
		Outcomes:       labels,
		LockTime:       f.now.Add(time.Hour),
		ResolutionTime: f.now.Add(2 * time.Hour),
		Resolver:       resolver,
		MinBet:         10,
		MaxBet:         1_000_000,
		CreatorFeeBps:  100,
		CreatorBond:    500,
	})
	require.NoError(t, err)
	return m
}

// resolveAs locks the clock past lockTime and resolves the market.
func (f *fixture) resolveAs(t *testing.T, marketID string, winning int) {
	t.Helper()
	if f.now.Before(f.marketByID(t, marketID).LockTime) {
		f.now = f.marketByID(t, marketID).LockTime.Add(time.Minute)
	}
	require.NoError(t, f.markets.ResolveMarket(context.Background(), resolver, marketID, winning))
}

func (f *fixture) marketByID(t *testing.T, id string) domain.Market {
	t.Helper()
	var m domain.Market
	err := f.ledger.View(context.Background(), func(tx domain.LedgerTx) error {
		var err error
		m, err = tx.GetMarket(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) positionOf(t *testing.T, marketID string, user common.Address) domain.Position {
	t.Helper()
	var p domain.Position
	err := f.ledger.View(context.Background(), func(tx domain.LedgerTx) error {
		var err error
		p, err = tx.GetPosition(context.Background(), marketID, user)
		return err
	})
	require.NoError(t, err)
	return p
}

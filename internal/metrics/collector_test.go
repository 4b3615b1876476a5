package metrics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

type staticLister struct {
	byStatus map[domain.MarketStatus][]domain.Market
}

func (l *staticLister) ListByStatus(_ context.Context, status domain.MarketStatus, _ domain.ListOpts) ([]domain.Market, error) {
	return l.byStatus[status], nil
}

type staticFees struct {
	total uint64
}

func (f *staticFees) ProtocolFeesAccrued(context.Context) (uint64, error) {
	return f.total, nil
}

func newTestCollector(t *testing.T, lister MarketLister, fees FeeReader) (*Collector, *EngineMetrics) {
	t.Helper()
	em := New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCollector(em, nil, lister, fees, nil, logger), em
}

func eventPayload(t *testing.T, typ domain.EventType, marketID string, data map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.Event{
		Type:     typ,
		MarketID: marketID,
		At:       time.Now().UTC(),
		Data:     data,
	})
	require.NoError(t, err)
	return payload
}

func TestCollectorCountsBetEvents(t *testing.T) {
	c, em := newTestCollector(t, &staticLister{}, &staticFees{})
	ctx := context.Background()

	c.handle(ctx, eventPayload(t, domain.EventBetPlaced, "m1", map[string]any{"amount": 500}))
	c.handle(ctx, eventPayload(t, domain.EventBetPlaced, "m1", map[string]any{"amount": 250}))

	// Without a cache the market type falls back to "unknown".
	assert.Equal(t, 2.0, testutil.ToFloat64(em.BetsTotal.WithLabelValues("unknown")))
}

func TestCollectorCountsAMMAndDisputeEvents(t *testing.T) {
	c, em := newTestCollector(t, &staticLister{}, &staticFees{})
	ctx := context.Background()

	c.handle(ctx, eventPayload(t, domain.EventSharesSwapped, "m1", nil))
	c.handle(ctx, eventPayload(t, domain.EventLiquidityAdded, "m1", nil))
	c.handle(ctx, eventPayload(t, domain.EventLiquidityRemoved, "m1", nil))
	c.handle(ctx, eventPayload(t, domain.EventDisputeResolved, "m1", map[string]any{"upheld": true}))
	c.handle(ctx, eventPayload(t, domain.EventDisputeResolved, "m1", map[string]any{"upheld": false}))

	assert.Equal(t, 1.0, testutil.ToFloat64(em.SwapsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.LiquidityEvents.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.LiquidityEvents.WithLabelValues("remove")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.DisputesTotal.WithLabelValues("upheld")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.DisputesTotal.WithLabelValues("rejected")))
}

func TestCollectorIgnoresMalformedPayloads(t *testing.T) {
	c, em := newTestCollector(t, &staticLister{}, &staticFees{})

	c.handle(context.Background(), []byte("not json"))

	families, err := em.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				assert.Zero(t, m.GetCounter().GetValue(), "no counter should move on malformed input")
			}
		}
	}
}

func TestCollectorPollRefreshesGauges(t *testing.T) {
	lister := &staticLister{byStatus: map[domain.MarketStatus][]domain.Market{
		domain.MarketStatusOpen: {
			{ID: "m1", TotalPool: 1000},
			{ID: "m2", TotalPool: 250},
		},
		domain.MarketStatusResolved: {
			{ID: "m3"},
		},
	}}
	c, em := newTestCollector(t, lister, &staticFees{total: 42})

	c.poll(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(em.MarketsByStatus.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(em.MarketsByStatus.WithLabelValues("resolved")))
	assert.Equal(t, 0.0, testutil.ToFloat64(em.MarketsByStatus.WithLabelValues("locked")))
	assert.Equal(t, 1250.0, testutil.ToFloat64(em.TotalValueStaked))
	assert.Equal(t, 42.0, testutil.ToFloat64(em.ProtocolFees))
}

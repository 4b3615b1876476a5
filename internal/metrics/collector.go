package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/colonyforge/marketd/internal/domain"
)

// MarketLister is the slice of the market service the collector polls for
// per-status gauges.
type MarketLister interface {
	ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error)
}

// FeeReader reports the accrued protocol fee total.
type FeeReader interface {
	ProtocolFeesAccrued(ctx context.Context) (uint64, error)
}

// gaugeStatuses are the lifecycle states the poll loop tracks.
var gaugeStatuses = []domain.MarketStatus{
	domain.MarketStatusOpen,
	domain.MarketStatusLocked,
	domain.MarketStatusResolved,
	domain.MarketStatusDisputed,
	domain.MarketStatusCancelled,
}

// collectorChannels are the event channels the collector consumes.
var collectorChannels = []string{"ch:bet", "ch:amm", "ch:dispute"}

// pollLimit bounds how many markets a single status poll fetches. Gauges
// saturate at this value rather than scanning an unbounded ledger.
const pollLimit = 5000

// Collector keeps the engine-level Prometheus metrics current. Counters are
// driven by signal-bus events so the services stay metrics-free; gauges are
// refreshed by a poll loop against the ledger-backed read surface.
type Collector struct {
	em       *EngineMetrics
	bus      domain.SignalBus
	markets  MarketLister
	fees     FeeReader
	cache    domain.MarketCache
	interval time.Duration
	logger   *slog.Logger
}

// NewCollector creates a Collector. The cache is used for best-effort market
// type lookups on bet events; a miss records the bet under "unknown".
func NewCollector(
	em *EngineMetrics,
	bus domain.SignalBus,
	markets MarketLister,
	fees FeeReader,
	cache domain.MarketCache,
	logger *slog.Logger,
) *Collector {
	return &Collector{
		em:       em,
		bus:      bus,
		markets:  markets,
		fees:     fees,
		cache:    cache,
		interval: 15 * time.Second,
		logger:   logger.With(slog.String("component", "metrics_collector")),
	}
}

// Run subscribes to the engine event channels and starts the poll loop. It
// blocks until the context is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	for _, channel := range collectorChannels {
		ch, err := c.bus.Subscribe(ctx, channel)
		if err != nil {
			c.logger.WarnContext(ctx, "subscribe failed, channel skipped",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		go c.consume(ctx, ch)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Collector) consume(ctx context.Context, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			c.handle(ctx, payload)
		}
	}
}

func (c *Collector) handle(ctx context.Context, payload []byte) {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.DebugContext(ctx, "dropping malformed event",
			slog.String("error", err.Error()),
		)
		return
	}

	switch ev.Type {
	case domain.EventBetPlaced:
		c.em.RecordBet(c.marketType(ctx, ev.MarketID), eventUint(ev, "amount"))
	case domain.EventSharesSwapped:
		c.em.SwapsTotal.Inc()
	case domain.EventLiquidityAdded:
		c.em.LiquidityEvents.WithLabelValues("add").Inc()
	case domain.EventLiquidityRemoved:
		c.em.LiquidityEvents.WithLabelValues("remove").Inc()
	case domain.EventDisputeResolved:
		upheld, _ := ev.Data["upheld"].(bool)
		c.em.RecordDispute(upheld)
	}
}

// marketType resolves a market's type from the cache, falling back to
// "unknown". The collector never touches the ledger on the event path.
func (c *Collector) marketType(ctx context.Context, marketID string) string {
	if c.cache == nil {
		return "unknown"
	}
	m, err := c.cache.Get(ctx, marketID)
	if err != nil {
		return "unknown"
	}
	return string(m.Type)
}

// eventUint extracts a numeric field from an event's data map. JSON numbers
// decode as float64.
func eventUint(ev domain.Event, key string) uint64 {
	v, ok := ev.Data[key].(float64)
	if !ok || v < 0 {
		return 0
	}
	return uint64(v)
}

// poll refreshes the per-status market gauges, the open-pool total, and the
// accrued protocol fees.
func (c *Collector) poll(ctx context.Context) {
	for _, status := range gaugeStatuses {
		markets, err := c.markets.ListByStatus(ctx, status, domain.ListOpts{Limit: pollLimit})
		if err != nil {
			c.logger.WarnContext(ctx, "status poll failed",
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
			continue
		}
		c.em.MarketsByStatus.WithLabelValues(string(status)).Set(float64(len(markets)))

		if status == domain.MarketStatusOpen {
			var staked uint64
			for _, m := range markets {
				staked += m.TotalPool
			}
			c.em.TotalValueStaked.Set(float64(staked))
		}
	}

	fees, err := c.fees.ProtocolFeesAccrued(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "fee poll failed", slog.String("error", err.Error()))
		return
	}
	c.em.ProtocolFees.Set(float64(fees))
}

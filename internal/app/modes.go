package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/colonyforge/marketd/internal/metrics"
	"github.com/colonyforge/marketd/internal/notify"
	"github.com/colonyforge/marketd/internal/server"
	"github.com/colonyforge/marketd/internal/server/handler"
	"github.com/colonyforge/marketd/internal/server/ws"
	"github.com/colonyforge/marketd/internal/service"
)

// services bundles the engine services built on top of the wired
// dependencies. Modes share a single instance of each service.
type services struct {
	Markets   *service.MarketService
	Bets      *service.BettingService
	Liquidity *service.LiquidityService
	Disputes  *service.DisputeService
	Profiles  *service.ProfileService
}

// ServeMode starts the HTTP API, the WebSocket hub, and the notification
// relay. Background maintenance (lock sweeps, archival) is left to a worker
// instance.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	em := metrics.New()
	a.startNotifyRelay(ctx, g, deps)
	a.startMetricsCollector(ctx, g, deps, svcs, em)
	a.startHTTPServer(ctx, g, deps, svcs, em)

	return g.Wait()
}

// WorkerMode runs only the background maintenance loops: locking markets
// whose lock time has passed and archiving settled markets to blob storage.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	a.startNotifyRelay(ctx, g, deps)
	a.startMaintenance(ctx, g, deps, svcs, nil)

	return g.Wait()
}

// FullMode runs everything in one process: the HTTP API, the WebSocket hub,
// the notification relay, and the maintenance loops.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	em := metrics.New()
	a.startNotifyRelay(ctx, g, deps)
	a.startMetricsCollector(ctx, g, deps, svcs, em)
	a.startMaintenance(ctx, g, deps, svcs, em)
	a.startHTTPServer(ctx, g, deps, svcs, em)

	return g.Wait()
}

// buildServices constructs the engine services from the wired dependencies
// and the configured engine settings.
func (a *App) buildServices(deps *Dependencies) *services {
	settings := a.engineSettings()
	events := service.NewPublisher(deps.SignalBus, a.logger)

	return &services{
		Markets: service.NewMarketService(
			deps.Ledger, deps.LockManager, deps.MarketCache,
			deps.Rail, deps.Auth, events, settings, a.logger,
		),
		Bets: service.NewBettingService(
			deps.Ledger, deps.LockManager, deps.MarketCache,
			deps.Rail, deps.Oracle, deps.Auth, events, settings, a.logger,
		),
		Liquidity: service.NewLiquidityService(
			deps.Ledger, deps.LockManager, deps.MarketCache,
			deps.Rail, deps.Auth, events, settings, a.logger,
		),
		Disputes: service.NewDisputeService(
			deps.Ledger, deps.LockManager, deps.MarketCache,
			deps.Rail, deps.Auth, events, settings, a.logger,
		),
		Profiles: service.NewProfileService(deps.Ledger),
	}
}

// engineSettings maps the engine section of the config onto the service
// settings, falling back to the defaults for unset durations.
func (a *App) engineSettings() service.Settings {
	s := service.DefaultSettings()
	s.MarketsEnabled = a.cfg.Engine.MarketsEnabled
	s.MaxCreatorFeeBps = a.cfg.Engine.MaxCreatorFeeBps
	s.ProtocolFeeBps = a.cfg.Engine.ProtocolFeeBps
	s.BonusPerLevelBps = a.cfg.Engine.BonusPerLevelBps
	s.SwapFeeBps = a.cfg.Engine.SwapFeeBps
	if a.cfg.Engine.DisputeWindow.Duration > 0 {
		s.DisputeWindow = a.cfg.Engine.DisputeWindow.Duration
	}
	if a.cfg.Engine.VotingWindow.Duration > 0 {
		s.VotingWindow = a.cfg.Engine.VotingWindow.Duration
	}
	if a.cfg.Engine.LockTTL.Duration > 0 {
		s.LockTTL = a.cfg.Engine.LockTTL.Duration
	}
	return s
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, em *metrics.EngineMetrics) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Status:    handler.NewStatusHandler(svcs.Markets, deps.Auth, time.Now().UTC()),
		Markets:   handler.NewMarketHandler(svcs.Markets, a.logger),
		Bets:      handler.NewBetHandler(svcs.Bets, a.logger),
		Liquidity: handler.NewLiquidityHandler(svcs.Liquidity, a.logger),
		Disputes:  handler.NewDisputeHandler(svcs.Disputes, a.logger),
		Profiles:  handler.NewProfileHandler(svcs.Profiles, a.logger),
		Admin:     handler.NewAdminHandler(svcs.Markets, deps.Auth, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Admin = handlers.Admin.WithArchives(deps.BlobReader, deps.BlobDeleter)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Auth.APIKey,
		Limiter:         deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, em, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startMetricsCollector adds the goroutine that keeps the engine-level
// Prometheus metrics current from bus events and ledger polls.
func (a *App) startMetricsCollector(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, em *metrics.EngineMetrics) {
	collector := metrics.NewCollector(em, deps.SignalBus, svcs.Markets, svcs.Profiles, deps.MarketCache, a.logger)
	g.Go(func() error {
		return collector.Run(ctx)
	})
}

// startNotifyRelay adds the signal-bus-to-operator-alerts relay goroutine to
// the given errgroup.
func (a *App) startNotifyRelay(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	relay := notify.NewRelay(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		return relay.Run(ctx)
	})
}

// startMaintenance adds the background maintenance goroutines: the lock sweep
// that transitions open markets past their lock time, and (when blob storage
// is wired) the archival loop that moves settled markets to object storage.
func (a *App) startMaintenance(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, em *metrics.EngineMetrics) {
	sweepInterval := a.cfg.Maintenance.LockSweepInterval.Duration
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}

	record := func(op string, start time.Time, err error) {
		if em != nil {
			em.RecordOperation(op, time.Since(start).Seconds(), err)
		}
	}

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				start := time.Now()
				locked, err := svcs.Markets.LockDueMarkets(ctx)
				record("lock_sweep", start, err)
				if err != nil {
					a.logger.ErrorContext(ctx, "maintenance: lock sweep failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if locked > 0 {
					a.logger.InfoContext(ctx, "maintenance: locked due markets",
						slog.Int("count", locked),
					)
				}
			}
		}
	})

	if deps.Archiver == nil {
		a.logger.InfoContext(ctx, "maintenance: blob storage not wired, archival disabled")
		return
	}

	archiveInterval := a.cfg.Maintenance.ArchiveInterval.Duration
	if archiveInterval <= 0 {
		archiveInterval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Maintenance.ArchiveRetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	g.Go(func() error {
		runOnce := func() {
			start := time.Now()
			cutoff := start.UTC().Add(-retention)
			archived, err := deps.Archiver.ArchiveSettledMarkets(ctx, cutoff)
			record("archive", start, err)
			if err != nil {
				a.logger.ErrorContext(ctx, "maintenance: archival failed",
					slog.String("error", err.Error()),
				)
				return
			}
			if archived > 0 {
				a.logger.InfoContext(ctx, "maintenance: archived settled markets",
					slog.Int64("markets", archived),
					slog.Time("cutoff", cutoff),
				)
			}
		}

		runOnce()
		ticker := time.NewTicker(archiveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runOnce()
			}
		}
	})
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/metrics"
	"github.com/colonyforge/marketd/internal/server/handler"
	"github.com/colonyforge/marketd/internal/server/middleware"
	"github.com/colonyforge/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Rate limiting; disabled when RateLimit is zero or Limiter is nil.
	Limiter         domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Markets   *handler.MarketHandler
	Bets      *handler.BetHandler
	Liquidity *handler.LiquidityHandler
	Disputes  *handler.DisputeHandler
	Profiles  *handler.ProfileHandler
	Admin     *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server for the market engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, auth, logging, CORS) wired around it.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, em *metrics.EngineMetrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and status (no auth required for health).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{id}/lock", handlers.Markets.LockMarket)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Markets.CancelMarket)

	// Betting and settlement.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Bets.ClaimWinnings)
	mux.HandleFunc("POST /api/markets/{id}/refund", handlers.Bets.ClaimRefund)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", handlers.Bets.GetPosition)
	mux.HandleFunc("GET /api/markets/{id}/payout-estimate", handlers.Bets.EstimatePayout)

	// AMM pools.
	mux.HandleFunc("POST /api/markets/{id}/liquidity", handlers.Liquidity.AddLiquidity)
	mux.HandleFunc("POST /api/markets/{id}/liquidity/remove", handlers.Liquidity.RemoveLiquidity)
	mux.HandleFunc("POST /api/markets/{id}/swap", handlers.Liquidity.SwapShares)
	mux.HandleFunc("GET /api/markets/{id}/swap-estimate", handlers.Liquidity.EstimateSwapOutput)
	mux.HandleFunc("GET /api/markets/{id}/pool", handlers.Liquidity.GetPool)

	// Disputes.
	mux.HandleFunc("POST /api/markets/{id}/disputes", handlers.Disputes.FileDispute)
	mux.HandleFunc("GET /api/markets/{id}/disputes", handlers.Disputes.ListDisputes)
	mux.HandleFunc("GET /api/markets/{id}/disputes/{index}", handlers.Disputes.GetDispute)
	mux.HandleFunc("POST /api/markets/{id}/disputes/{index}/votes", handlers.Disputes.VoteOnDispute)
	mux.HandleFunc("POST /api/markets/{id}/disputes/{index}/resolve", handlers.Disputes.ResolveDispute)

	// Profiles and fee accounting.
	mux.HandleFunc("GET /api/profiles/users/{address}", handlers.Profiles.GetUserProfile)
	mux.HandleFunc("GET /api/profiles/resolvers/{address}", handlers.Profiles.GetResolverProfile)
	mux.HandleFunc("GET /api/protocol/fees", handlers.Profiles.GetProtocolFees)

	// Operator endpoints.
	mux.HandleFunc("POST /api/admin/pause", handlers.Admin.SetPaused)
	mux.HandleFunc("POST /api/admin/markets/cancel-batch", handlers.Admin.CancelMarketsBatch)
	mux.HandleFunc("POST /api/admin/markets/lock-due", handlers.Admin.LockDueMarkets)
	mux.HandleFunc("GET /api/admin/archives", handlers.Admin.ListArchives)
	mux.HandleFunc("POST /api/admin/archives/delete", handlers.Admin.DeleteArchive)

	// Prometheus exposition.
	if em != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(em.Registry(), promhttp.HandlerOpts{}))
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if em != nil {
		h = middleware.Metrics(em)(h)
	}

	h = middleware.Logging(logger)(h)

	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/colonyforge/marketd/internal/domain"
)

// MarketCounter exposes the aggregate counts the status endpoint reports.
type MarketCounter interface {
	ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// StatusHandler serves the engine status snapshot for dashboards.
type StatusHandler struct {
	markets   MarketCounter
	auth      domain.Authorizer
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(markets MarketCounter, auth domain.Authorizer, startedAt time.Time) *StatusHandler {
	return &StatusHandler{
		markets:   markets,
		auth:      auth,
		startedAt: startedAt,
	}
}

// GetStatus responds with engine totals, the pause flag, and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	total, err := h.markets.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	open, err := h.markets.ListByStatus(r.Context(), domain.MarketStatusOpen, domain.ListOpts{Limit: 500})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list open markets")
		return
	}

	var tvl uint64
	for _, m := range open {
		tvl += m.TotalPool
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_markets":      total,
		"open_markets":       len(open),
		"total_value_staked": tvl,
		"paused":             h.auth.Paused(),
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
	})
}

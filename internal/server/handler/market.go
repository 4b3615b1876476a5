package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, p service.CreateMarketParams) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
	ResolveMarket(ctx context.Context, caller common.Address, marketID string, winning int) error
	LockMarket(ctx context.Context, caller common.Address, marketID string) error
	CancelMarket(ctx context.Context, caller common.Address, marketID, reason string) error
}

// MarketHandler serves market lifecycle HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the JSON body for market creation.
type createMarketRequest struct {
	Creator        string   `json:"creator"`
	Type           string   `json:"type"`
	Question       string   `json:"question"`
	Outcomes       []string `json:"outcomes"`
	LockTime       string   `json:"lock_time"`
	ResolutionTime string   `json:"resolution_time"`
	Resolver       string   `json:"resolver"`
	MinBet         uint64   `json:"min_bet"`
	MaxBet         uint64   `json:"max_bet"`
	CreatorFeeBps  uint32   `json:"creator_fee_bps"`
	CreatorBond    uint64   `json:"creator_bond"`
	LinkedEntity   string   `json:"linked_entity,omitempty"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creator, ok := parseAddress(req.Creator)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid creator address")
		return
	}
	resolver, ok := parseAddress(req.Resolver)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid resolver address")
		return
	}
	lockTime, err := time.Parse(time.RFC3339, req.LockTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lock_time, want RFC3339")
		return
	}
	resolutionTime, err := time.Parse(time.RFC3339, req.ResolutionTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution_time, want RFC3339")
		return
	}

	marketType := domain.MarketType(req.Type)
	if marketType == "" {
		marketType = domain.MarketTypeGeneral
	}

	market, err := h.markets.CreateMarket(r.Context(), service.CreateMarketParams{
		Creator:        creator,
		Type:           marketType,
		Question:       req.Question,
		Outcomes:       req.Outcomes,
		LockTime:       lockTime,
		ResolutionTime: resolutionTime,
		Resolver:       resolver,
		MinBet:         req.MinBet,
		MaxBet:         req.MaxBet,
		CreatorFeeBps:  req.CreatorFeeBps,
		CreatorBond:    req.CreatorBond,
		LinkedEntity:   req.LinkedEntity,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "create market", err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets filtered by lifecycle status.
// GET /api/markets?status=open&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	status := domain.MarketStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.MarketStatusOpen
	}

	markets, err := h.markets.ListByStatus(r.Context(), status, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list markets", err)
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "count markets", err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get market", err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// resolveMarketRequest is the JSON body for market resolution.
type resolveMarketRequest struct {
	Caller         string `json:"caller"`
	WinningOutcome int    `json:"winning_outcome"`
}

// ResolveMarket declares the winning outcome of a locked market.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req resolveMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	if err := h.markets.ResolveMarket(r.Context(), caller, id, req.WinningOutcome); err != nil {
		writeServiceError(w, r, h.logger, "resolve market", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":       id,
		"winning_outcome": req.WinningOutcome,
	})
}

// callerRequest is the JSON body for operations needing only a caller address.
type callerRequest struct {
	Caller string `json:"caller"`
	Reason string `json:"reason,omitempty"`
}

// LockMarket force-locks an open market ahead of its lock time.
// POST /api/markets/{id}/lock
func (h *MarketHandler) LockMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	if err := h.markets.LockMarket(r.Context(), caller, id); err != nil {
		writeServiceError(w, r, h.logger, "lock market", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"market_id": id, "status": string(domain.MarketStatusLocked)})
}

// CancelMarket voids a market so bettors can reclaim their stakes.
// POST /api/markets/{id}/cancel
func (h *MarketHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	if err := h.markets.CancelMarket(r.Context(), caller, id, req.Reason); err != nil {
		writeServiceError(w, r, h.logger, "cancel market", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"market_id": id, "status": string(domain.MarketStatusCancelled)})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// LiquidityService defines the methods the liquidity handler requires.
type LiquidityService interface {
	AddLiquidity(ctx context.Context, provider common.Address, marketID string, amount uint64) (uint64, error)
	RemoveLiquidity(ctx context.Context, provider common.Address, marketID string, lpShares uint64) (uint64, error)
	SwapShares(ctx context.Context, user common.Address, marketID string, from, to int, amountIn uint64) (uint64, error)
	EstimateSwapOutput(ctx context.Context, marketID string, from, to int, amountIn uint64) (uint64, error)
	GetPool(ctx context.Context, marketID string) (domain.AMMPool, error)
}

// LiquidityHandler serves AMM pool HTTP endpoints.
type LiquidityHandler struct {
	liquidity LiquidityService
	logger    *slog.Logger
}

// NewLiquidityHandler creates a LiquidityHandler with the given service and
// logger.
func NewLiquidityHandler(liquidity LiquidityService, logger *slog.Logger) *LiquidityHandler {
	return &LiquidityHandler{
		liquidity: liquidity,
		logger:    logger,
	}
}

// liquidityRequest is the JSON body for adding or removing liquidity.
type liquidityRequest struct {
	Provider string `json:"provider"`
	Amount   uint64 `json:"amount,omitempty"`
	LPShares uint64 `json:"lp_shares,omitempty"`
}

// AddLiquidity deposits value into a market's AMM pool.
// POST /api/markets/{id}/liquidity
func (h *LiquidityHandler) AddLiquidity(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req liquidityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	provider, ok := parseAddress(req.Provider)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider address")
		return
	}

	lpShares, err := h.liquidity.AddLiquidity(r.Context(), provider, id, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "add liquidity", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"market_id": id,
		"amount":    req.Amount,
		"lp_shares": lpShares,
	})
}

// RemoveLiquidity burns LP shares and withdraws the proportional reserves.
// POST /api/markets/{id}/liquidity/remove
func (h *LiquidityHandler) RemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req liquidityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	provider, ok := parseAddress(req.Provider)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider address")
		return
	}

	amount, err := h.liquidity.RemoveLiquidity(r.Context(), provider, id, req.LPShares)
	if err != nil {
		writeServiceError(w, r, h.logger, "remove liquidity", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"lp_shares": req.LPShares,
		"amount":    amount,
	})
}

// swapRequest is the JSON body for a share swap.
type swapRequest struct {
	User     string `json:"user"`
	From     int    `json:"from"`
	To       int    `json:"to"`
	AmountIn uint64 `json:"amount_in"`
}

// SwapShares trades shares of one outcome for another through the pool.
// POST /api/markets/{id}/swap
func (h *LiquidityHandler) SwapShares(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := parseAddress(req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user address")
		return
	}

	amountOut, err := h.liquidity.SwapShares(r.Context(), user, id, req.From, req.To, req.AmountIn)
	if err != nil {
		writeServiceError(w, r, h.logger, "swap shares", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":  id,
		"from":       req.From,
		"to":         req.To,
		"amount_in":  req.AmountIn,
		"amount_out": amountOut,
	})
}

// EstimateSwapOutput quotes a swap without executing it.
// GET /api/markets/{id}/swap-estimate?from=0&to=1&amount=100
func (h *LiquidityHandler) EstimateSwapOutput(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	q := r.URL.Query()

	from, err := strconv.Atoi(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from outcome")
		return
	}
	to, err := strconv.Atoi(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to outcome")
		return
	}
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	amountOut, err := h.liquidity.EstimateSwapOutput(r.Context(), id, from, to, amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "estimate swap", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":  id,
		"from":       from,
		"to":         to,
		"amount_in":  amount,
		"amount_out": amountOut,
	})
}

// GetPool returns the AMM pool state for a market.
// GET /api/markets/{id}/pool
func (h *LiquidityHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	pool, err := h.liquidity.GetPool(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get pool", err)
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

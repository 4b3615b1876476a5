package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// BettingService defines the methods the bet handler requires.
type BettingService interface {
	PlaceBet(ctx context.Context, bettor common.Address, marketID string, outcome int, amount uint64) (uint64, error)
	ClaimWinnings(ctx context.Context, user common.Address, marketID string) (uint64, error)
	ClaimRefund(ctx context.Context, user common.Address, marketID string) (uint64, error)
	GetPosition(ctx context.Context, marketID string, user common.Address) (domain.Position, error)
	EstimatePayout(ctx context.Context, marketID string, user common.Address, outcome int) (uint64, error)
}

// BetHandler serves betting and settlement HTTP endpoints.
type BetHandler struct {
	bets   BettingService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BettingService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// placeBetRequest is the JSON body for placing a bet.
type placeBetRequest struct {
	Bettor  string `json:"bettor"`
	Outcome int    `json:"outcome"`
	Amount  uint64 `json:"amount"`
}

// PlaceBet stakes amount on an outcome of an open market.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bettor, ok := parseAddress(req.Bettor)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}

	shares, err := h.bets.PlaceBet(r.Context(), bettor, id, req.Outcome, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "place bet", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"market_id": id,
		"outcome":   req.Outcome,
		"amount":    req.Amount,
		"shares":    shares,
	})
}

// userRequest is the JSON body for claim operations.
type userRequest struct {
	User string `json:"user"`
}

// ClaimWinnings pays out the caller's position on a resolved market.
// POST /api/markets/{id}/claim
func (h *BetHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := parseAddress(req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user address")
		return
	}

	payout, err := h.bets.ClaimWinnings(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "claim winnings", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"payout":    payout,
	})
}

// ClaimRefund returns the caller's raw stake on a cancelled market.
// POST /api/markets/{id}/refund
func (h *BetHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, ok := parseAddress(req.User)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user address")
		return
	}

	refund, err := h.bets.ClaimRefund(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "claim refund", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"refund":    refund,
	})
}

// GetPosition returns a user's position in a market.
// GET /api/markets/{id}/positions/{address}
func (h *BetHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	user, ok := parseAddress(pathParam(r, "address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user address")
		return
	}

	pos, err := h.bets.GetPosition(r.Context(), id, user)
	if err != nil {
		writeServiceError(w, r, h.logger, "get position", err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// EstimatePayout returns the payout a user would receive if the given outcome
// won at the current pool composition.
// GET /api/markets/{id}/payout-estimate?user=0x..&outcome=0
func (h *BetHandler) EstimatePayout(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	q := r.URL.Query()

	user, ok := parseAddress(q.Get("user"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user address")
		return
	}
	outcome, err := strconv.Atoi(q.Get("outcome"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outcome index")
		return
	}

	payout, err := h.bets.EstimatePayout(r.Context(), id, user, outcome)
	if err != nil {
		writeServiceError(w, r, h.logger, "estimate payout", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"outcome":   outcome,
		"payout":    payout,
	})
}

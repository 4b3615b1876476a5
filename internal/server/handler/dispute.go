package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// DisputeService defines the methods the dispute handler requires.
type DisputeService interface {
	DisputeResolution(ctx context.Context, disputer common.Address, marketID string, proposedOutcome int) (domain.Dispute, error)
	VoteOnDispute(ctx context.Context, voter common.Address, marketID string, index int, voteFor bool) error
	ResolveDispute(ctx context.Context, marketID string, index int) (bool, error)
	ListDisputes(ctx context.Context, marketID string) ([]domain.Dispute, error)
	GetDispute(ctx context.Context, marketID string, index int) (domain.Dispute, error)
}

// DisputeHandler serves dispute arbitration HTTP endpoints.
type DisputeHandler struct {
	disputes DisputeService
	logger   *slog.Logger
}

// NewDisputeHandler creates a DisputeHandler with the given service and
// logger.
func NewDisputeHandler(disputes DisputeService, logger *slog.Logger) *DisputeHandler {
	return &DisputeHandler{
		disputes: disputes,
		logger:   logger,
	}
}

// fileDisputeRequest is the JSON body for challenging a resolution.
type fileDisputeRequest struct {
	Disputer        string `json:"disputer"`
	ProposedOutcome int    `json:"proposed_outcome"`
}

// FileDispute challenges a market's resolution within the dispute window.
// POST /api/markets/{id}/disputes
func (h *DisputeHandler) FileDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req fileDisputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	disputer, ok := parseAddress(req.Disputer)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid disputer address")
		return
	}

	dispute, err := h.disputes.DisputeResolution(r.Context(), disputer, id, req.ProposedOutcome)
	if err != nil {
		writeServiceError(w, r, h.logger, "file dispute", err)
		return
	}

	writeJSON(w, http.StatusCreated, dispute)
}

// ListDisputes returns all disputes filed against a market.
// GET /api/markets/{id}/disputes
func (h *DisputeHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	disputes, err := h.disputes.ListDisputes(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "list disputes", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"disputes":  disputes,
	})
}

// GetDispute returns one dispute by market and index.
// GET /api/markets/{id}/disputes/{index}
func (h *DisputeHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	index, err := strconv.Atoi(pathParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dispute index")
		return
	}

	dispute, err := h.disputes.GetDispute(r.Context(), id, index)
	if err != nil {
		writeServiceError(w, r, h.logger, "get dispute", err)
		return
	}

	writeJSON(w, http.StatusOK, dispute)
}

// voteRequest is the JSON body for casting a dispute vote.
type voteRequest struct {
	Voter   string `json:"voter"`
	VoteFor bool   `json:"vote_for"`
}

// VoteOnDispute casts a stake-weighted vote on an open dispute.
// POST /api/markets/{id}/disputes/{index}/votes
func (h *DisputeHandler) VoteOnDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	index, err := strconv.Atoi(pathParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dispute index")
		return
	}

	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	voter, ok := parseAddress(req.Voter)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid voter address")
		return
	}

	if err := h.disputes.VoteOnDispute(r.Context(), voter, id, index, req.VoteFor); err != nil {
		writeServiceError(w, r, h.logger, "vote on dispute", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"index":     index,
		"vote_for":  req.VoteFor,
	})
}

// ResolveDispute tallies the votes and settles an open dispute.
// POST /api/markets/{id}/disputes/{index}/resolve
func (h *DisputeHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	index, err := strconv.Atoi(pathParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dispute index")
		return
	}

	upheld, err := h.disputes.ResolveDispute(r.Context(), id, index)
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve dispute", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"index":     index,
		"upheld":    upheld,
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// MarketAdminService defines the bulk lifecycle methods the admin handler
// requires.
type MarketAdminService interface {
	CancelMarketsBatch(ctx context.Context, caller common.Address, ids []string, reason string) ([]string, error)
	LockDueMarkets(ctx context.Context) (int, error)
}

// PauseController flips the engine-wide pause flag.
type PauseController interface {
	domain.Authorizer
	SetPaused(paused bool)
}

// AdminHandler serves operator-only HTTP endpoints.
type AdminHandler struct {
	markets MarketAdminService
	pause   PauseController
	blobs   domain.BlobReader
	deleter domain.BlobDeleter
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given dependencies.
func NewAdminHandler(markets MarketAdminService, pause PauseController, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		markets: markets,
		pause:   pause,
		logger:  logger,
	}
}

// WithArchives enables the archive browsing endpoints. Without it they
// respond 503.
func (h *AdminHandler) WithArchives(reader domain.BlobReader, deleter domain.BlobDeleter) *AdminHandler {
	h.blobs = reader
	h.deleter = deleter
	return h
}

// pauseRequest is the JSON body for flipping the pause flag.
type pauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

// SetPaused pauses or resumes all mutating engine operations.
// POST /api/admin/pause
func (h *AdminHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	if !h.pause.IsAdmin(caller) {
		writeError(w, http.StatusForbidden, domain.ErrUnauthorized.Error())
		return
	}

	h.pause.SetPaused(req.Paused)
	h.logger.InfoContext(r.Context(), "admin: pause flag changed",
		slog.Bool("paused", req.Paused),
		slog.String("caller", caller.Hex()),
	)

	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

// cancelBatchRequest is the JSON body for bulk market cancellation.
type cancelBatchRequest struct {
	Caller    string   `json:"caller"`
	MarketIDs []string `json:"market_ids"`
	Reason    string   `json:"reason"`
}

// CancelMarketsBatch voids a set of markets, skipping those that cannot be
// cancelled, and returns the IDs that were cancelled.
// POST /api/admin/markets/cancel-batch
func (h *AdminHandler) CancelMarketsBatch(w http.ResponseWriter, r *http.Request) {
	var req cancelBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	cancelled, err := h.markets.CancelMarketsBatch(r.Context(), caller, req.MarketIDs, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel markets batch", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled": cancelled,
		"requested": len(req.MarketIDs),
	})
}

// ListArchives lists archived objects in blob storage, optionally filtered
// by a key prefix.
// GET /api/admin/archives?prefix=archive/markets/
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "blob storage not configured")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prefix":   prefix,
		"archives": infos,
	})
}

// deleteArchiveRequest is the JSON body for removing an archive object.
type deleteArchiveRequest struct {
	Caller string `json:"caller"`
	Path   string `json:"path"`
}

// DeleteArchive removes a single archive object from blob storage. Admin only.
// POST /api/admin/archives/delete
func (h *AdminHandler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	if h.deleter == nil {
		writeError(w, http.StatusServiceUnavailable, "blob storage not configured")
		return
	}

	var req deleteArchiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	if !h.pause.IsAdmin(caller) {
		writeError(w, http.StatusForbidden, domain.ErrUnauthorized.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := h.deleter.Delete(r.Context(), req.Path); err != nil {
		writeServiceError(w, r, h.logger, "delete archive", err)
		return
	}

	h.logger.InfoContext(r.Context(), "admin: archive deleted",
		slog.String("path", req.Path),
		slog.String("caller", caller.Hex()),
	)

	writeJSON(w, http.StatusOK, map[string]string{"deleted": req.Path})
}

// LockDueMarkets locks every open market whose lock time has passed. The
// maintenance loop runs this on a schedule; this endpoint triggers it on
// demand.
// POST /api/admin/markets/lock-due
func (h *AdminHandler) LockDueMarkets(w http.ResponseWriter, r *http.Request) {
	locked, err := h.markets.LockDueMarkets(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "lock due markets", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"locked": locked})
}

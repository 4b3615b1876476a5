package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// ProfileService defines the methods the profile handler requires.
type ProfileService interface {
	GetUserProfile(ctx context.Context, addr common.Address) (domain.UserProfile, error)
	GetResolverProfile(ctx context.Context, addr common.Address) (domain.ResolverProfile, error)
	ProtocolFeesAccrued(ctx context.Context) (uint64, error)
}

// ProfileHandler serves reputation and fee-accounting HTTP endpoints.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler with the given service and
// logger.
func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// GetUserProfile returns a bettor's betting record. Addresses with no record
// yet return a zero-valued profile.
// GET /api/profiles/users/{address}
func (h *ProfileHandler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(pathParam(r, "address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	profile, err := h.profiles.GetUserProfile(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get user profile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// GetResolverProfile returns a resolver's reputation record.
// GET /api/profiles/resolvers/{address}
func (h *ProfileHandler) GetResolverProfile(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(pathParam(r, "address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	profile, err := h.profiles.GetResolverProfile(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get resolver profile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// GetProtocolFees returns the total protocol fees accrued by the waterfall.
// GET /api/protocol/fees
func (h *ProfileHandler) GetProtocolFees(w http.ResponseWriter, r *http.Request) {
	accrued, err := h.profiles.ProtocolFeesAccrued(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get protocol fees", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"accrued": accrued})
}

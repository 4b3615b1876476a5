package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service-layer error onto an HTTP response. Known
// sentinel errors become 4xx responses carrying the sentinel's message;
// anything else is logged and returned as an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if status, ok := statusFor(err); ok {
		writeError(w, status, err.Error())
		return
	}
	logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

// statusFor returns the HTTP status for a known sentinel error.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrUnauthorizedCreator),
		errors.Is(err, domain.ErrNotResolver):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrInvalidOutcome),
		errors.Is(err, domain.ErrInvalidOutcomeCount),
		errors.Is(err, domain.ErrInvalidTimeConfig),
		errors.Is(err, domain.ErrInvalidCreatorFee),
		errors.Is(err, domain.ErrBetTooSmall),
		errors.Is(err, domain.ErrBetTooLarge),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameOutcomeSwap),
		errors.Is(err, domain.ErrAmountOverflow):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrMarketsDisabled):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, domain.ErrMarketNotOpen),
		errors.Is(err, domain.ErrMarketNotLocked),
		errors.Is(err, domain.ErrMarketNotResolved),
		errors.Is(err, domain.ErrMarketNotCancellable),
		errors.Is(err, domain.ErrMarketNotCancelled),
		errors.Is(err, domain.ErrMarketDisputed),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrDisputeResolved),
		errors.Is(err, domain.ErrDisputeWindowClosed),
		errors.Is(err, domain.ErrStakeImbalance),
		errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrQuorumNotReached),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusBadGateway, true
	default:
		return 0, false
	}
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// parseAddress validates and decodes a 0x-prefixed hex address.
func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// decodeBody decodes the request body JSON into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/service"
)

// fakeMarkets is a canned-response MarketService.
type fakeMarkets struct {
	market domain.Market
	err    error
}

func (f *fakeMarkets) CreateMarket(context.Context, service.CreateMarketParams) (domain.Market, error) {
	return f.market, f.err
}

func (f *fakeMarkets) GetMarket(context.Context, string) (domain.Market, error) {
	return f.market, f.err
}

func (f *fakeMarkets) ListByStatus(context.Context, domain.MarketStatus, domain.ListOpts) ([]domain.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Market{f.market}, nil
}

func (f *fakeMarkets) Count(context.Context) (int64, error) { return 1, f.err }

func (f *fakeMarkets) ResolveMarket(context.Context, common.Address, string, int) error {
	return f.err
}

func (f *fakeMarkets) LockMarket(context.Context, common.Address, string) error { return f.err }

func (f *fakeMarkets) CancelMarket(context.Context, common.Address, string, string) error {
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(markets MarketService) *http.ServeMux {
	h := NewMarketHandler(markets, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/resolve", h.ResolveMarket)
	return mux
}

func TestGetMarket(t *testing.T) {
	mux := newMux(&fakeMarkets{market: domain.Market{ID: "m1", Status: domain.MarketStatusOpen}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/m1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "m1", m.ID)
}

func TestGetMarketNotFound(t *testing.T) {
	mux := newMux(&fakeMarkets{err: domain.ErrNotFound})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMarkets(t *testing.T) {
	mux := newMux(&fakeMarkets{market: domain.Market{ID: "m1"}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listMarketsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Markets, 1)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, 10, resp.Limit)
}

func TestResolveMarketSentinelMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not resolver", domain.ErrNotResolver, http.StatusForbidden},
		{"not locked", domain.ErrMarketNotLocked, http.StatusConflict},
		{"invalid outcome", domain.ErrInvalidOutcome, http.StatusBadRequest},
		{"payment failed", domain.ErrPaymentFailed, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(&fakeMarkets{err: tt.err})

			body := `{"caller":"0x0000000000000000000000000000000000000002","winning_outcome":0}`
			req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/resolve", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestResolveMarketRejectsBadAddress(t *testing.T) {
	mux := newMux(&fakeMarkets{})

	body := `{"caller":"not-an-address","winning_outcome":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/resolve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseAddress(t *testing.T) {
	_, ok := parseAddress("0x0000000000000000000000000000000000000001")
	assert.True(t, ok)

	_, ok = parseAddress("0x01")
	assert.False(t, ok)

	_, ok = parseAddress("")
	assert.False(t, ok)
}

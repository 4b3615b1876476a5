package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/domain"
)

type fakeAdminMarkets struct {
	cancelled []string
	locked    int
	err       error
}

func (f *fakeAdminMarkets) CancelMarketsBatch(context.Context, common.Address, []string, string) ([]string, error) {
	return f.cancelled, f.err
}

func (f *fakeAdminMarkets) LockDueMarkets(context.Context) (int, error) {
	return f.locked, f.err
}

// fakePause is a PauseController with a fixed admin.
type fakePause struct {
	admin  common.Address
	paused bool
}

func (f *fakePause) CanCreateMarkets(common.Address) bool { return true }
func (f *fakePause) IsAdmin(addr common.Address) bool     { return addr == f.admin }
func (f *fakePause) Paused() bool                         { return f.paused }
func (f *fakePause) SetPaused(p bool)                     { f.paused = p }

type fakeBlobStore struct {
	infos   []domain.BlobInfo
	deleted []string
	err     error
}

func (f *fakeBlobStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeBlobStore) List(context.Context, string) ([]domain.BlobInfo, error) {
	return f.infos, f.err
}

func (f *fakeBlobStore) Exists(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, path)
	return nil
}

var adminAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newAdminMux(markets MarketAdminService, pause PauseController, blobs *fakeBlobStore) *http.ServeMux {
	h := NewAdminHandler(markets, pause, testLogger())
	if blobs != nil {
		h = h.WithArchives(blobs, blobs)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/pause", h.SetPaused)
	mux.HandleFunc("POST /api/admin/markets/cancel-batch", h.CancelMarketsBatch)
	mux.HandleFunc("POST /api/admin/markets/lock-due", h.LockDueMarkets)
	mux.HandleFunc("GET /api/admin/archives", h.ListArchives)
	mux.HandleFunc("POST /api/admin/archives/delete", h.DeleteArchive)
	return mux
}

func TestSetPausedRequiresAdmin(t *testing.T) {
	pause := &fakePause{admin: adminAddr}
	mux := newAdminMux(&fakeAdminMarkets{}, pause, nil)

	body := `{"caller":"0x00000000000000000000000000000000000000bb","paused":true}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/pause", strings.NewReader(body)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, pause.paused)
}

func TestSetPausedFlipsFlag(t *testing.T) {
	pause := &fakePause{admin: adminAddr}
	mux := newAdminMux(&fakeAdminMarkets{}, pause, nil)

	body := `{"caller":"` + adminAddr.Hex() + `","paused":true}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/pause", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, pause.paused)
}

func TestListArchivesWithoutBlobStore(t *testing.T) {
	mux := newAdminMux(&fakeAdminMarkets{}, &fakePause{admin: adminAddr}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/archives", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListArchives(t *testing.T) {
	blobs := &fakeBlobStore{infos: []domain.BlobInfo{
		{Path: "archive/markets/2026-03.jsonl", Size: 2048, LastModified: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{Path: "archive/markets/2026-04.jsonl", Size: 1024, LastModified: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}}
	mux := newAdminMux(&fakeAdminMarkets{}, &fakePause{admin: adminAddr}, blobs)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/archives?prefix=archive/markets/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Prefix   string            `json:"prefix"`
		Archives []domain.BlobInfo `json:"archives"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "archive/markets/", resp.Prefix)
	require.Len(t, resp.Archives, 2)
	assert.Equal(t, "archive/markets/2026-03.jsonl", resp.Archives[0].Path)
}

func TestDeleteArchiveRequiresAdmin(t *testing.T) {
	blobs := &fakeBlobStore{}
	mux := newAdminMux(&fakeAdminMarkets{}, &fakePause{admin: adminAddr}, blobs)

	body := `{"caller":"0x00000000000000000000000000000000000000bb","path":"archive/markets/2026-03.jsonl"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/archives/delete", strings.NewReader(body)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, blobs.deleted)
}

func TestDeleteArchive(t *testing.T) {
	blobs := &fakeBlobStore{}
	mux := newAdminMux(&fakeAdminMarkets{}, &fakePause{admin: adminAddr}, blobs)

	body := `{"caller":"` + adminAddr.Hex() + `","path":"archive/markets/2026-03.jsonl"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/archives/delete", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"archive/markets/2026-03.jsonl"}, blobs.deleted)
}

func TestLockDueMarketsEndpoint(t *testing.T) {
	mux := newAdminMux(&fakeAdminMarkets{locked: 3}, &fakePause{admin: adminAddr}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/markets/lock-due", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locked":3}`, rec.Body.String())
}

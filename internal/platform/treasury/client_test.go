package treasury

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyforge/marketd/internal/crypto"
	"github.com/colonyforge/marketd/internal/domain"
)

func testAuth() *crypto.HMACAuth {
	return &crypto.HMACAuth{
		Key:    "test-key",
		Secret: base64.StdEncoding.EncodeToString([]byte("test-secret")),
	}
}

func TestCollectFee(t *testing.T) {
	payer := common.BytesToAddress([]byte{0x01})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments/collect", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Treasury-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Treasury-Timestamp"))
		assert.NotEmpty(t, r.Header.Get("X-Treasury-Signature"))

		var pr paymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&pr))
		assert.Equal(t, payer.Hex(), pr.Account)
		assert.Equal(t, uint64(1000), pr.Amount)
		assert.Equal(t, "bet:abc", pr.Tag)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pay-1","status":"completed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testAuth())
	err := c.CollectFee(context.Background(), payer, 1000, "bet:abc")
	require.NoError(t, err)
}

func TestTransferFromTreasury(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/transfer", r.URL.Path)
		w.Write([]byte(`{"id":"pay-2","status":"completed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testAuth())
	err := c.TransferFromTreasury(context.Background(), common.BytesToAddress([]byte{0x02}), 500, "payout:m1")
	require.NoError(t, err)
}

func TestPaymentRejectedWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"insufficient funds"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testAuth())
	err := c.CollectFee(context.Background(), common.BytesToAddress([]byte{0x03}), 1000, "bet:def")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentFailed))
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestPaymentIncompleteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pay-3","status":"pending"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testAuth())
	err := c.TransferFromTreasury(context.Background(), common.BytesToAddress([]byte{0x04}), 500, "refund:m2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentFailed))
}

func TestPaymentUnreachableWrapsSentinel(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", testAuth())
	err := c.CollectFee(context.Background(), common.BytesToAddress([]byte{0x05}), 1, "bet:x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentFailed))
}

func TestSignatureMatchesAuthHelper(t *testing.T) {
	auth := testAuth()
	var gotSig, gotTS string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Treasury-Signature")
		gotTS = r.Header.Get("X-Treasury-Timestamp")
		body, _ := json.Marshal(paymentRequest{
			Account: common.BytesToAddress([]byte{0x06}).Hex(),
			Amount:  42,
			Tag:     "bond:m3",
		})
		gotBody = body
		w.Write([]byte(`{"status":"completed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, auth)
	require.NoError(t, c.CollectFee(context.Background(), common.BytesToAddress([]byte{0x06}), 42, "bond:m3"))

	ts, err := strconv.ParseInt(gotTS, 10, 64)
	require.NoError(t, err)
	want := auth.HeadersAt(http.MethodPost, "/v1/payments/collect", string(gotBody), ts)
	assert.Equal(t, want["X-Treasury-Signature"], gotSig)
}

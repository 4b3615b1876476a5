// Package treasury is the HTTP client for the custodial payment rail. All
// value movement (bet stakes, bonds, payouts, refunds) goes through it, and
// calls run inside ledger transactions so a rail failure aborts the whole
// operation.
package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/crypto"
	"github.com/colonyforge/marketd/internal/domain"
)

const requestTimeout = 15 * time.Second

// Client executes HMAC-signed payment requests against the treasury API.
type Client struct {
	baseURL    string
	auth       *crypto.HMACAuth
	httpClient *http.Client
}

// NewClient creates a treasury client with the given credentials.
func NewClient(baseURL string, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// paymentRequest is the request body for both collect and transfer calls.
type paymentRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Tag     string `json:"tag"`
}

// paymentResponse is the treasury's response envelope.
type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CollectFee pulls amount from payer into the treasury.
func (c *Client) CollectFee(ctx context.Context, payer common.Address, amount uint64, tag string) error {
	return c.execute(ctx, "/v1/payments/collect", payer, amount, tag)
}

// TransferFromTreasury pays amount out of the treasury to recipient.
func (c *Client) TransferFromTreasury(ctx context.Context, recipient common.Address, amount uint64, tag string) error {
	return c.execute(ctx, "/v1/payments/transfer", recipient, amount, tag)
}

func (c *Client) execute(ctx context.Context, path string, account common.Address, amount uint64, tag string) error {
	body, err := json.Marshal(paymentRequest{
		Account: account.Hex(),
		Amount:  amount,
		Tag:     tag,
	})
	if err != nil {
		return fmt.Errorf("treasury: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("treasury: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(http.MethodPost, path, string(body)) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("treasury: %w: %v", domain.ErrPaymentFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("treasury: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pr paymentResponse
		if json.Unmarshal(respBody, &pr) == nil && pr.Error != "" {
			return fmt.Errorf("treasury: %w: HTTP %d: %s", domain.ErrPaymentFailed, resp.StatusCode, pr.Error)
		}
		return fmt.Errorf("treasury: %w: HTTP %d: %s", domain.ErrPaymentFailed, resp.StatusCode, string(respBody))
	}

	var pr paymentResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return fmt.Errorf("treasury: decode response: %w", err)
	}
	if pr.Status != "completed" {
		return fmt.Errorf("treasury: %w: status %q", domain.ErrPaymentFailed, pr.Status)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PaymentRail = (*Client)(nil)

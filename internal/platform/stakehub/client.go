// Package stakehub is the HTTP client for the external staking registry. The
// registry reports a user's staked-token level, which feeds the share bonus
// on bets. Lookups are best-effort by contract: callers collapse any error to
// level 0, so this client never retries aggressively or blocks for long.
package stakehub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/domain"
)

const requestTimeout = 5 * time.Second

// Client queries the staking registry over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a staking-registry client.
//
// baseURL is the registry endpoint, e.g. "https://stakehub.colonyforge.io".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// levelResponse is the registry's response envelope.
type levelResponse struct {
	Address string `json:"address"`
	Level   uint32 `json:"level"`
}

// BestStakedLevel returns the user's staked-token level from the registry.
func (c *Client) BestStakedLevel(ctx context.Context, user common.Address) (uint32, error) {
	url := c.baseURL + "/v1/levels/" + user.Hex()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("stakehub: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("stakehub: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("stakehub: read response: %w", err)
	}

	// An unknown address is simply level 0, not an error.
	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stakehub: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var lr levelResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return 0, fmt.Errorf("stakehub: decode response: %w", err)
	}
	return lr.Level, nil
}

// Compile-time interface check.
var _ domain.StakingOracle = (*Client)(nil)

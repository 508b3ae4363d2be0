package ingester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ledger-stats-system/internal/config"
	"ledger-stats-system/pkg/errors"
)

// Client fetches raw transfer records from the remote ledger API.
type Client struct {
	apiURL     string
	pageLimit  int
	httpClient *http.Client
}

func NewClient(cfg *config.LedgerConfig) *Client {
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = 1000
	}
	return &Client{
		apiURL:     cfg.APIURL,
		pageLimit:  pageLimit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transactionsResponse struct {
	Blocks []RawTransaction `json:"blocks"`
	Total  int64            `json:"total"`
}

// FetchLatest returns the most recent page of raw transactions from the
// ledger API.
func (c *Client) FetchLatest(ctx context.Context) ([]RawTransaction, error) {
	url := fmt.Sprintf("%s?limit=%d", c.apiURL, c.pageLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.ErrLedgerFetch, "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrLedgerFetch, "ledger API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrLedgerFetch,
			fmt.Sprintf("ledger API returned status %d", resp.StatusCode), nil)
	}

	var body transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.New(errors.ErrLedgerFetch, "failed to decode response", err)
	}

	return body.Blocks, nil
}

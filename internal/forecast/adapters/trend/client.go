package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"payoutflow/internal/forecast/application"
	forecast "payoutflow/internal/forecast/domain"
)

// Client fetches long-horizon revenue estimates from the trend service.
// Figures are passed through verbatim; the engine never re-derives them.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a trend client.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("trend: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type estimateResponse struct {
	AmountCents int64 `json:"amount_cents"`
	LowerCents  int64 `json:"lower_bound_cents"`
	UpperCents  int64 `json:"upper_bound_cents"`
	Horizon     int   `json:"horizon_days"`
}

// Estimate returns the account's projected settlement revenue over the
// horizon.
func (c *Client) Estimate(ctx context.Context, accountID string, horizonDays int) (application.TrendEstimate, error) {
	if c == nil || c.client == nil {
		return application.TrendEstimate{}, errors.New("trend: nil client")
	}
	if accountID == "" {
		return application.TrendEstimate{}, forecast.ErrEmptyAccountID
	}
	if horizonDays <= 0 {
		return application.TrendEstimate{}, errors.New("trend: non-positive horizon")
	}

	path := fmt.Sprintf("/api/v1/accounts/%s/estimate?horizon_days=%d", accountID, horizonDays)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return application.TrendEstimate{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return application.TrendEstimate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return application.TrendEstimate{}, forecast.ErrSettlementNotFound
	}
	if resp.StatusCode >= 300 {
		return application.TrendEstimate{}, fmt.Errorf("trend: http %d", resp.StatusCode)
	}

	var body estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return application.TrendEstimate{}, err
	}
	if body.Horizon == 0 {
		body.Horizon = horizonDays
	}
	return application.TrendEstimate{
		Amount:     forecast.Money(body.AmountCents),
		LowerBound: forecast.Money(body.LowerCents),
		UpperBound: forecast.Money(body.UpperCents),
		Horizon:    body.Horizon,
	}, nil
}

// Package forecast is a client for the external probability forecasting
// service.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oddslab/courtside/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client talks to the forecasting service over HTTP. The service accepts a
// market feature vector and returns a probability distribution over outcomes.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a forecast client. A zero timeout falls back to the
// package default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// Configured reports whether a service URL has been set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Predict submits market features and returns the service's forecast.
func (c *Client) Predict(ctx context.Context, features domain.ForecastFeatures) (domain.Forecast, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast: marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/forecast", bytes.NewReader(body))
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Forecast{}, fmt.Errorf("forecast: status %d", resp.StatusCode)
	}

	var fc domain.Forecast
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast: decode response: %w", err)
	}
	return fc, nil
}

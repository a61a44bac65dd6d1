// Package sportsfeed is a client for the external sports results provider.
package sportsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oddslab/courtside/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client talks to the sports results HTTP API. Credentials are passed via the
// X-Api-Key header on every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a sportsfeed client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Configured reports whether the client has credentials to make requests.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// GetGame fetches a single game by provider ID.
func (c *Client) GetGame(ctx context.Context, gameID string) (Game, error) {
	var game Game
	endpoint := fmt.Sprintf("%s/v1/games/%s", c.baseURL, url.PathEscape(gameID))
	if err := c.doGet(ctx, endpoint, nil, &game); err != nil {
		return Game{}, fmt.Errorf("sportsfeed: get game %s: %w", gameID, err)
	}
	return game, nil
}

// GetSchedule fetches the games scheduled for the given date (UTC).
func (c *Client) GetSchedule(ctx context.Context, date time.Time) ([]Game, error) {
	var resp scheduleResponse
	params := url.Values{"date": {date.UTC().Format("2006-01-02")}}
	endpoint := c.baseURL + "/v1/schedule"
	if err := c.doGet(ctx, endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("sportsfeed: get schedule: %w", err)
	}
	return resp.Games, nil
}

// doGet performs an authenticated GET against endpoint and decodes the JSON
// body into out. Provider-side 404 and 429 map onto the domain sentinels.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		var apiErr errorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

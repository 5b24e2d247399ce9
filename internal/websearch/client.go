// Package websearch is the budget- and cache-aware external reconnaissance
// tool backed by the Exa search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.exa.ai"
	requestTimeout = 5 * time.Second
)

// ErrRateLimited is returned by the client on HTTP 429 so the tool can honor
// Retry-After.
type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.retryAfter)
}

// Client is a thin HTTP client for the Exa /search endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Exa client. baseURL override is for tests.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type searchRequest struct {
	Query              string `json:"query"`
	Category           string `json:"category,omitempty"`
	UseAutoprompt      bool   `json:"useAutoprompt"`
	NumResults         int    `json:"numResults"`
	StartPublishedDate string `json:"startPublishedDate,omitempty"`
	Contents           struct {
		Text struct {
			MaxCharacters int `json:"maxCharacters"`
		} `json:"text"`
	} `json:"contents"`
}

type rawResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	PublishedDate string  `json:"publishedDate"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}

type searchResponse struct {
	Results []rawResult `json:"results"`
}

// search performs one uncached API call. Results published before the lookback
// window (90 days) are excluded server-side.
func (c *Client) search(ctx context.Context, query string, numResults int) ([]rawResult, error) {
	req := searchRequest{
		Query:              query,
		Category:           "discussion",
		UseAutoprompt:      true,
		NumResults:         numResults,
		StartPublishedDate: time.Now().UTC().AddDate(0, 0, -90).Format(time.RFC3339),
	}
	req.Contents.Text.MaxCharacters = 400

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, &rateLimitError{retryAfter: retryAfter}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search API status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package itunes looks up artwork through the public iTunes Search API.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
)

const DefaultBaseURL = "https://itunes.apple.com"

// Client queries the search endpoint. No credentials are needed.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = telemetry.HTTPClient(5 * time.Second)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Name identifies the source in metrics.
func (c *Client) Name() string { return "itunes" }

// Artwork returns a 600x600 artwork URL for the best match, or "" when there is none.
func (c *Client) Artwork(ctx context.Context, title, artist string) (string, error) {
	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("term", title+" "+artist)
	q.Set("media", "music")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues("itunes", telemetry.OutcomeError).Inc()
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		telemetry.UpstreamRequestsTotal.WithLabelValues("itunes", telemetry.OutcomeError).Inc()
		return "", fmt.Errorf("itunes search: status %d", resp.StatusCode)
	}

	var result struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			ArtworkURL100 string `json:"artworkUrl100"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	telemetry.UpstreamRequestsTotal.WithLabelValues("itunes", telemetry.OutcomeSuccess).Inc()

	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return "", nil
	}
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1), nil
}

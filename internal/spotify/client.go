/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package spotify searches the Spotify catalog with app (client credentials) auth.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotConfigured is returned when client credentials are missing.
var ErrNotConfigured = errors.New("spotify: credentials not configured")

const (
	DefaultTokenURL   = "https://accounts.spotify.com/api/token"
	DefaultAPIBaseURL = "https://api.spotify.com/v1"

	searchLimit  = 20
	searchMarket = "US"
)

// Config holds the app credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	// HTTPClient is used for both the token exchange and API calls. Optional.
	HTTPClient *http.Client
}

// Client is a Spotify Web API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	configured bool
}

// Track is a search result in the shape the request form uses.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	AlbumArt   string `json:"albumArt"`
	SpotifyURL string `json:"spotifyUrl"`
}

type searchResponse struct {
	Tracks struct {
		Items []apiTrack `json:"items"`
	} `json:"tracks"`
}

type apiTrack struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Explicit bool   `json:"explicit"`
	Artists  []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// New creates a client. Missing credentials yield a client whose calls return ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	base := cfg.HTTPClient
	if base == nil {
		base = telemetry.HTTPClient(10 * time.Second)
	}

	c := &Client{baseURL: strings.TrimRight(cfg.APIBaseURL, "/")}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return c
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source caches the access token until it expires.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	c.httpClient = cc.Client(tokenCtx)
	c.httpClient.Timeout = base.Timeout
	c.configured = true
	return c
}

// Name identifies the source in metrics.
func (c *Client) Name() string { return "spotify" }

// Configured reports whether credentials were supplied.
func (c *Client) Configured() bool { return c.configured }

func (c *Client) search(ctx context.Context, params url.Values) (*searchResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues("spotify", telemetry.OutcomeError).Inc()
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		telemetry.UpstreamRequestsTotal.WithLabelValues("spotify", telemetry.OutcomeError).Inc()
		return nil, fmt.Errorf("spotify search failed (status %d): %s", resp.StatusCode, string(body))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	telemetry.UpstreamRequestsTotal.WithLabelValues("spotify", telemetry.OutcomeSuccess).Inc()
	return &out, nil
}

// AlbumArt returns the first image of the best matching track's album, or "" when nothing matches.
func (c *Client) AlbumArt(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("track:%s artist:%s", title, artist))
	params.Set("type", "track")
	params.Set("limit", "1")

	res, err := c.search(ctx, params)
	if err != nil {
		return "", err
	}
	if len(res.Tracks.Items) == 0 || len(res.Tracks.Items[0].Album.Images) == 0 {
		return "", nil
	}
	return res.Tracks.Items[0].Album.Images[0].URL, nil
}

// SearchTracks runs a free-text track search. Explicit tracks are dropped.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]Track, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(query))
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(searchLimit))
	params.Set("market", searchMarket)

	res, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(res.Tracks.Items))
	for _, it := range res.Tracks.Items {
		if it.Explicit {
			continue
		}
		tracks = append(tracks, it.toTrack())
	}
	return tracks, nil
}

func (t apiTrack) toTrack() Track {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	art := ""
	if len(t.Album.Images) > 0 {
		art = t.Album.Images[0].URL
	}
	return Track{
		ID:         t.ID,
		Title:      t.Name,
		Artist:     strings.Join(names, ", "),
		Album:      t.Album.Name,
		AlbumArt:   art,
		SpotifyURL: t.ExternalURLs.Spotify,
	}
}

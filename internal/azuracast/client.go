/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package azuracast is a client for the station's AzuraCast instance.
package azuracast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
)

// ErrAPIKeyMissing is returned by calls that need the station API key when none is configured.
var ErrAPIKeyMissing = errors.New("azuracast: API key not configured")

// ErrEmptyPayload is returned when the upstream body decodes to nothing, e.g. "null".
var ErrEmptyPayload = errors.New("azuracast: empty payload")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("azuracast: API error (status %d): %s", e.StatusCode, e.Body)
}

// Client talks to one station on an AzuraCast server.
type Client struct {
	baseURL    string
	station    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. httpClient may be nil.
func NewClient(baseURL, station, apiKey string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if station == "" {
		return nil, errors.New("station shortcode is required")
	}
	if httpClient == nil {
		httpClient = telemetry.HTTPClient(30 * time.Second)
	}
	return &Client{baseURL: baseURL, station: station, apiKey: apiKey, httpClient: httpClient}, nil
}

// HasAPIKey reports whether authenticated calls can be made.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

func (c *Client) stationPath(format string, args ...any) string {
	return "/api/station/" + url.PathEscape(c.station) + fmt.Sprintf(format, args...)
}

// doRequest performs a GET. authed requests carry the API key as a Bearer token.
func (c *Client) doRequest(ctx context.Context, path string, authed bool) (*http.Response, error) {
	if authed && c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues("azuracast", telemetry.OutcomeError).Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		telemetry.UpstreamRequestsTotal.WithLabelValues("azuracast", telemetry.OutcomeError).Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	telemetry.UpstreamRequestsTotal.WithLabelValues("azuracast", telemetry.OutcomeSuccess).Inc()
	return resp, nil
}

// decodeAPIResponse decodes a JSON response body and closes it.
func decodeAPIResponse[T any](resp *http.Response) (T, error) {
	var result T
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func readRaw(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("decode response: invalid JSON")
	}
	return json.RawMessage(body), nil
}

// NowPlaying returns the station's now-playing payload.
func (c *Client) NowPlaying(ctx context.Context) (*NowPlaying, error) {
	resp, err := c.doRequest(ctx, "/api/nowplaying/"+url.PathEscape(c.station), false)
	if err != nil {
		return nil, err
	}
	np, err := decodeAPIResponse[*NowPlaying](resp)
	if err != nil {
		return nil, err
	}
	if np == nil {
		return nil, ErrEmptyPayload
	}
	return np, nil
}

// Schedule returns the public programming schedule.
func (c *Client) Schedule(ctx context.Context) ([]ScheduleItem, error) {
	resp, err := c.doRequest(ctx, c.stationPath("/schedule"), false)
	if err != nil {
		return nil, err
	}
	return decodeAPIResponse[[]ScheduleItem](resp)
}

// StreamerSchedule returns the authenticated streamer schedule between start and end, untouched.
func (c *Client) StreamerSchedule(ctx context.Context, start, end string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("end", end)
	q.Set("timeZone", "UTC")
	resp, err := c.doRequest(ctx, c.stationPath("/streamers/schedule?%s", q.Encode()), true)
	if err != nil {
		return nil, err
	}
	return readRaw(resp)
}

// Podcasts lists the station's public podcasts.
func (c *Client) Podcasts(ctx context.Context) ([]Podcast, error) {
	resp, err := c.doRequest(ctx, c.stationPath("/public/podcasts"), false)
	if err != nil {
		return nil, err
	}
	return decodeAPIResponse[[]Podcast](resp)
}

// Podcast returns one public podcast.
func (c *Client) Podcast(ctx context.Context, id string) (*Podcast, error) {
	resp, err := c.doRequest(ctx, c.stationPath("/public/podcast/%s", url.PathEscape(id)), false)
	if err != nil {
		return nil, err
	}
	return decodeAPIResponse[*Podcast](resp)
}

// Episodes lists a podcast's public episodes.
func (c *Client) Episodes(ctx context.Context, podcastID string) ([]Episode, error) {
	resp, err := c.doRequest(ctx, c.stationPath("/public/podcast/%s/episodes", url.PathEscape(podcastID)), false)
	if err != nil {
		return nil, err
	}
	return decodeAPIResponse[[]Episode](resp)
}

// Episode returns one episode as the upstream sent it.
func (c *Client) Episode(ctx context.Context, podcastID, episodeID string) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, c.stationPath("/public/podcast/%s/episode/%s",
		url.PathEscape(podcastID), url.PathEscape(episodeID)), true)
	if err != nil {
		return nil, err
	}
	return readRaw(resp)
}

// PodcastArtURL resolves the podcast art endpoint and returns the URL it redirects to.
func (c *Client) PodcastArtURL(ctx context.Context, podcastID string) (string, error) {
	resp, err := c.doRequest(ctx, c.stationPath("/podcast/%s/art", url.PathEscape(podcastID)), true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Request.URL.String(), nil
}

// PublicPodcastArtURL is the unauthenticated art URL the listener pages link to.
func (c *Client) PublicPodcastArtURL(podcastID string) string {
	return c.baseURL + c.stationPath("/podcast/%s/art", url.PathEscape(podcastID))
}

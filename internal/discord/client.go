/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package discord posts messages to a Discord channel webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("discord: webhook URL not configured")

// StatusError is a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discord: webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Field is one name/value row of an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Image is an embed image reference.
type Image struct {
	URL string `json:"url"`
}

// Embed is a rich message card.
type Embed struct {
	Title     string  `json:"title"`
	Color     int     `json:"color"`
	Fields    []Field `json:"fields"`
	Thumbnail *Image  `json:"thumbnail,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// File is an attachment uploaded with the message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a webhook execution body.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds"`
	Files   []File  `json:"-"`
}

// Client executes one webhook.
type Client struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client. httpClient may be nil.
func NewClient(webhookURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = telemetry.HTTPClient(15 * time.Second)
	}
	return &Client{
		webhookURL: webhookURL,
		client:     httpClient,
		logger:     logger.With().Str("component", "discord").Logger(),
	}
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.webhookURL != ""
}

// Send posts msg. Messages with files go as multipart/form-data with the
// JSON body in payload_json; others are plain JSON.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, contentType, err := encode(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "RBC-Radio-Relay/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues("discord", telemetry.OutcomeError).Inc()
		c.logger.Error().Err(err).Msg("webhook delivery failed")
		return fmt.Errorf("discord: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		telemetry.UpstreamRequestsTotal.WithLabelValues("discord", telemetry.OutcomeError).Inc()
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", string(text)).Msg("webhook returned error status")
		return &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	telemetry.UpstreamRequestsTotal.WithLabelValues("discord", telemetry.OutcomeSuccess).Inc()
	c.logger.Debug().Int("status", resp.StatusCode).Int("files", len(msg.Files)).Msg("webhook delivered")
	return nil
}

func encode(msg Message) (io.Reader, string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}
	if len(msg.Files) == 0 {
		return bytes.NewReader(payload), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return nil, "", fmt.Errorf("write payload_json: %w", err)
	}
	for i, f := range msg.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename=%q`, i, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package requests handles listener submissions: song requests, text
// messages and voice memos, from the form state machine through to the
// moderation log and the Discord notification.
package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rbctelevision/rbcradio/internal/models"
)

// ErrUnknownType is returned for a missing or unrecognised "type" discriminant.
var ErrUnknownType = errors.New("unknown request type")

// Payload is one of SongRequest, MessageRequest or VoiceRequest.
type Payload interface {
	Type() models.RequestType
	Requester() string
	AdditionalComments() string
	isPayload()
}

// SongRequest asks for a track picked from the Spotify search.
type SongRequest struct {
	Name       string `json:"name"`
	SongTitle  string `json:"songTitle"`
	SongArtist string `json:"songArtist"`
	SpotifyURL string `json:"spotifyUrl"`
	AlbumArt   string `json:"albumArt,omitempty"`
	Comments   string `json:"comments,omitempty"`
}

// MessageRequest is a text shout-out.
type MessageRequest struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	Comments string `json:"comments,omitempty"`
}

// VoiceRequest carries a recorded clip as base64, optionally as a data URL.
type VoiceRequest struct {
	Name            string   `json:"name"`
	VoiceData       string   `json:"voiceData"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Comments        string   `json:"comments,omitempty"`
}

func (SongRequest) Type() models.RequestType    { return models.RequestTypeSong }
func (MessageRequest) Type() models.RequestType { return models.RequestTypeMessage }
func (VoiceRequest) Type() models.RequestType   { return models.RequestTypeVoice }

func (r SongRequest) Requester() string    { return r.Name }
func (r MessageRequest) Requester() string { return r.Name }
func (r VoiceRequest) Requester() string   { return r.Name }

func (r SongRequest) AdditionalComments() string    { return r.Comments }
func (r MessageRequest) AdditionalComments() string { return r.Comments }
func (r VoiceRequest) AdditionalComments() string   { return r.Comments }

func (SongRequest) isPayload()    {}
func (MessageRequest) isPayload() {}
func (VoiceRequest) isPayload()   {}

// MarshalJSON adds the "type" discriminant.
func (r SongRequest) MarshalJSON() ([]byte, error) {
	type plain SongRequest
	return json.Marshal(struct {
		Type models.RequestType `json:"type"`
		plain
	}{r.Type(), plain(r)})
}

// MarshalJSON adds the "type" discriminant.
func (r MessageRequest) MarshalJSON() ([]byte, error) {
	type plain MessageRequest
	return json.Marshal(struct {
		Type models.RequestType `json:"type"`
		plain
	}{r.Type(), plain(r)})
}

// MarshalJSON adds the "type" discriminant.
func (r VoiceRequest) MarshalJSON() ([]byte, error) {
	type plain VoiceRequest
	return json.Marshal(struct {
		Type models.RequestType `json:"type"`
		plain
	}{r.Type(), plain(r)})
}

// DecodePayload reads the "type" field and decodes into the matching struct.
func DecodePayload(data []byte) (Payload, error) {
	var head struct {
		Type models.RequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	switch head.Type {
	case models.RequestTypeSong:
		var p SongRequest
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode song request: %w", err)
		}
		return p, nil
	case models.RequestTypeMessage:
		var p MessageRequest
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode message request: %w", err)
		}
		return p, nil
	case models.RequestTypeVoice:
		var p VoiceRequest
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode voice request: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

// DecodePayloadFrom decodes a request body, bounded to maxBodyBytes.
func DecodePayloadFrom(r *http.Request) (Payload, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return DecodePayload(data)
}

// maxBodyBytes leaves room for a base64 voice memo at the default size cap.
const maxBodyBytes = 8 << 20

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package requests

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrValidation wraps every ValidationError.
var ErrValidation = errors.New("invalid request")

// ValidationError names the offending field. Its message is safe to show listeners.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Limits bound voice memo uploads.
type Limits struct {
	MaxVoiceBytes   int
	MaxVoiceSeconds int
}

// DefaultLimits matches the recorder's one-minute cap.
var DefaultLimits = Limits{MaxVoiceBytes: 5 << 20, MaxVoiceSeconds: 60}

// Validate checks a payload before anything is sent or stored.
func Validate(p Payload, limits Limits) error {
	if p == nil {
		return invalid("type", "request type is required")
	}
	if strings.TrimSpace(p.Requester()) == "" {
		return invalid("name", "Please enter your name")
	}

	switch r := p.(type) {
	case SongRequest:
		if strings.TrimSpace(r.SongTitle) == "" || strings.TrimSpace(r.SongArtist) == "" {
			return invalid("song", "Please select a song")
		}
	case MessageRequest:
		if strings.TrimSpace(r.Message) == "" {
			return invalid("message", "Please enter a message")
		}
	case VoiceRequest:
		if strings.TrimSpace(r.VoiceData) == "" {
			return invalid("voiceData", "Please record a voice memo")
		}
		audio, err := DecodeVoice(r.VoiceData)
		if err != nil {
			return invalid("voiceData", "Voice memo could not be read")
		}
		if limits.MaxVoiceBytes > 0 && len(audio) > limits.MaxVoiceBytes {
			return invalid("voiceData", "Voice memo is too large")
		}
		if r.DurationSeconds != nil && limits.MaxVoiceSeconds > 0 && *r.DurationSeconds > float64(limits.MaxVoiceSeconds) {
			return invalid("durationSeconds", fmt.Sprintf("Voice memos are limited to %d seconds", limits.MaxVoiceSeconds))
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownType, p)
	}
	return nil
}

// DecodeVoice strips an optional data:audio/...;base64, prefix and decodes the clip.
func DecodeVoice(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		meta, rest, ok := strings.Cut(data, ",")
		if !ok || !strings.HasPrefix(meta, "data:audio/") || !strings.HasSuffix(meta, ";base64") {
			return nil, errors.New("unsupported data URL")
		}
		data = rest
	}
	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty clip")
	}
	return audio, nil
}

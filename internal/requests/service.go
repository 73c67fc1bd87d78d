/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbctelevision/rbcradio/internal/discord"
	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/rbctelevision/rbcradio/internal/models"
	"github.com/rbctelevision/rbcradio/internal/storage"
	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrBanned is returned when the client IP is on the ban list.
	ErrBanned = errors.New("requests from this address are blocked")
	// ErrNotifierNotConfigured is returned when no Discord webhook is set.
	ErrNotifierNotConfigured = errors.New("Discord webhook URL not configured")
	// ErrNotifyFailed wraps a failed Discord delivery.
	ErrNotifyFailed = errors.New("Failed to send to Discord")
)

// BanChecker reports whether an IP is banned.
type BanChecker interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}

// Notifier delivers the rendered message.
type Notifier interface {
	Configured() bool
	Send(ctx context.Context, msg discord.Message) error
}

// ClientMeta identifies the submitter for the moderation log.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Result describes an accepted submission.
type Result struct {
	LogID         string
	AttachmentKey string
}

// Service runs the relay side of a submission.
type Service struct {
	db       *gorm.DB
	bans     BanChecker
	notifier Notifier
	store    storage.ObjectStore
	bus      events.Publisher
	limits   Limits
	logger   zerolog.Logger
	now      func() time.Time
}

// ServiceOptions holds the optional collaborators.
type ServiceOptions struct {
	Bans   BanChecker
	Store  storage.ObjectStore
	Bus    events.Publisher
	Limits Limits
	Now    func() time.Time
}

// NewService creates the submission service.
func NewService(db *gorm.DB, notifier Notifier, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:       db,
		bans:     opts.Bans,
		notifier: notifier,
		store:    opts.Store,
		bus:      opts.Bus,
		limits:   opts.Limits,
		logger:   logger.With().Str("component", "requests").Logger(),
		now:      opts.Now,
	}
}

// Limits returns the validation limits in force.
func (s *Service) Limits() Limits { return s.limits }

// Submit validates, checks the ban list, logs, archives and notifies. The log
// row and the notification are not transactional: a failed insert is logged
// and the notification still goes out; a failed notification fails the call
// even though the row was written.
func (s *Service) Submit(ctx context.Context, p Payload, meta ClientMeta) (*Result, error) {
	typ := "unknown"
	if p != nil {
		typ = string(p.Type())
	}

	if err := Validate(p, s.limits); err != nil {
		telemetry.ListenerRequestsTotal.WithLabelValues(typ, "invalid").Inc()
		return nil, err
	}

	if s.bans != nil {
		banned, err := s.bans.IsBanned(ctx, meta.IP)
		if err != nil {
			s.logger.Warn().Err(err).Str("ip", meta.IP).Msg("ban lookup failed, allowing request")
		} else if banned {
			telemetry.ListenerRequestsTotal.WithLabelValues(typ, "banned").Inc()
			s.logger.Info().Str("ip", meta.IP).Str("type", typ).Msg("rejected request from banned address")
			return nil, ErrBanned
		}
	}

	if s.notifier == nil || !s.notifier.Configured() {
		telemetry.ListenerRequestsTotal.WithLabelValues(typ, telemetry.OutcomeError).Inc()
		return nil, ErrNotifierNotConfigured
	}

	now := s.now()
	msg, err := BuildMessage(p, now)
	if err != nil {
		return nil, err
	}

	entry := models.NewRequestLog(meta.IP, p.Type(), meta.UserAgent, p.Requester(), Summary(p))
	res := &Result{LogID: entry.ID}

	if v, ok := p.(VoiceRequest); ok && s.store != nil {
		key := fmt.Sprintf("voice/%s/%s.webm", now.UTC().Format("2006/01/02"), entry.ID)
		if audio, err := DecodeVoice(v.VoiceData); err == nil {
			if err := s.store.Put(ctx, key, audio); err != nil {
				s.logger.Error().Err(err).Str("key", key).Msg("failed to archive voice memo")
			} else {
				entry.AttachmentKey = key
				res.AttachmentKey = key
			}
		}
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Str("type", typ).Msg("failed to write request log")
		res.LogID = ""
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		telemetry.ListenerRequestsTotal.WithLabelValues(typ, telemetry.OutcomeError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}

	telemetry.ListenerRequestsTotal.WithLabelValues(typ, telemetry.OutcomeSuccess).Inc()
	s.logger.Info().Str("type", typ).Str("log_id", res.LogID).Msg("listener request submitted")

	if s.bus != nil {
		s.bus.Publish(events.EventRequestSubmitted, events.Payload{
			"type":    typ,
			"log_id":  res.LogID,
			"summary": entry.ContentSummary,
		})
	}
	return res, nil
}

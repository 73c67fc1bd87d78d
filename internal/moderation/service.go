/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package moderation backs the admin dashboard: request logs, IP bans and
// site announcements.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/rbctelevision/rbcradio/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyBanned   = errors.New("ip address is already banned")
	ErrInvalidIP       = errors.New("invalid ip address")
	ErrInvalidSeverity = errors.New("invalid announcement type")
	ErrMissingTitle    = errors.New("title is required")
	ErrMissingMessage  = errors.New("message is required")
)

// DefaultRequestLimit caps one page of request logs.
const DefaultRequestLimit = 100

// Service runs moderation queries and publishes change events.
type Service struct {
	db     *gorm.DB
	bus    events.Publisher
	logger zerolog.Logger
}

// NewService creates the service. bus may be nil.
func NewService(db *gorm.DB, bus events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "moderation").Logger(),
	}
}

func (s *Service) publish(t events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(t, payload)
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Request logs

// ListRequestLogs returns the newest logs first. limit is clamped to 1..100.
func (s *Service) ListRequestLogs(ctx context.Context, limit int) ([]models.RequestLog, error) {
	if limit <= 0 || limit > DefaultRequestLimit {
		limit = DefaultRequestLimit
	}
	var logs []models.RequestLog
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	return logs, nil
}

// RequestLog returns one log.
func (s *Service) RequestLog(ctx context.Context, id string) (*models.RequestLog, error) {
	var log models.RequestLog
	if err := s.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// Bans

// NormalizeIP returns the canonical text form of ip.
func NormalizeIP(ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	return parsed.String(), nil
}

// ListBans returns bans newest first.
func (s *Service) ListBans(ctx context.Context) ([]models.BannedIP, error) {
	var bans []models.BannedIP
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&bans).Error; err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	return bans, nil
}

// Ban blocks ip. A second ban of the same address returns ErrAlreadyBanned.
func (s *Service) Ban(ctx context.Context, ip, reason, bannedBy string) (*models.BannedIP, error) {
	normalized, err := NormalizeIP(ip)
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.BannedIP{}).Where("ip_address = ?", normalized).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check ban: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyBanned
	}

	ban := models.NewBannedIP(normalized, strings.TrimSpace(reason), bannedBy)
	if err := s.db.WithContext(ctx).Create(ban).Error; err != nil {
		// Lost a race with a concurrent ban of the same address.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyBanned
		}
		return nil, fmt.Errorf("create ban: %w", err)
	}

	s.logger.Info().Str("ip", normalized).Str("banned_by", bannedBy).Msg("ip banned")
	s.publish(events.EventBanChanged, events.Payload{"action": "ban", "ip_address": normalized})
	return ban, nil
}

// Unban removes a ban by ID.
func (s *Service) Unban(ctx context.Context, id string) error {
	var ban models.BannedIP
	if err := s.db.WithContext(ctx).First(&ban, "id = ?", id).Error; err != nil {
		return notFound(err)
	}
	if err := s.db.WithContext(ctx).Delete(&ban).Error; err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}

	s.logger.Info().Str("ip", ban.IPAddress).Msg("ip unbanned")
	s.publish(events.EventBanChanged, events.Payload{"action": "unban", "ip_address": ban.IPAddress})
	return nil
}

// IsBanned reports whether ip is banned. Unparseable addresses are matched verbatim.
func (s *Service) IsBanned(ctx context.Context, ip string) (bool, error) {
	key := strings.TrimSpace(ip)
	if normalized, err := NormalizeIP(key); err == nil {
		key = normalized
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BannedIP{}).Where("ip_address = ?", key).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return count > 0, nil
}

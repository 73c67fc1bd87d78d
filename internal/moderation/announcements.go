/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/rbctelevision/rbcradio/internal/models"
)

// AnnouncementInput creates an announcement. Active defaults to true.
type AnnouncementInput struct {
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Type    models.Severity `json:"type"`
	Active  *bool           `json:"active,omitempty"`
}

// AnnouncementPatch updates only the fields that are set.
type AnnouncementPatch struct {
	Title   *string          `json:"title,omitempty"`
	Message *string          `json:"message,omitempty"`
	Type    *models.Severity `json:"type,omitempty"`
	Active  *bool            `json:"active,omitempty"`
}

func validateAnnouncement(a *models.Announcement) error {
	if strings.TrimSpace(a.Title) == "" {
		return ErrMissingTitle
	}
	if strings.TrimSpace(a.Message) == "" {
		return ErrMissingMessage
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, a.Type)
	}
	return nil
}

func (s *Service) announcementChanged(action, id string) {
	s.publish(events.EventAnnouncementChanged, events.Payload{"action": action, "id": id})
}

// ListAnnouncements returns every announcement, newest first.
func (s *Service) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	var out []models.Announcement
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return out, nil
}

// ListActiveAnnouncements returns the announcements listeners see, newest first.
func (s *Service) ListActiveAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	var out []models.Announcement
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list active announcements: %w", err)
	}
	return out, nil
}

// CreateAnnouncement validates and stores a new announcement.
func (s *Service) CreateAnnouncement(ctx context.Context, in AnnouncementInput) (*models.Announcement, error) {
	if in.Type == "" {
		in.Type = models.SeverityInfo
	}
	a := models.NewAnnouncement(strings.TrimSpace(in.Title), strings.TrimSpace(in.Message), in.Type)
	if in.Active != nil {
		a.Active = *in.Active
	}
	if err := validateAnnouncement(a); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}
	s.announcementChanged("create", a.ID)
	return a, nil
}

func (s *Service) announcement(ctx context.Context, id string) (*models.Announcement, error) {
	var a models.Announcement
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// UpdateAnnouncement applies a partial update.
func (s *Service) UpdateAnnouncement(ctx context.Context, id string, patch AnnouncementPatch) (*models.Announcement, error) {
	a, err := s.announcement(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		a.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Message != nil {
		a.Message = strings.TrimSpace(*patch.Message)
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.Active != nil {
		a.Active = *patch.Active
	}
	if err := validateAnnouncement(a); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return nil, fmt.Errorf("update announcement: %w", err)
	}
	s.announcementChanged("update", a.ID)
	return a, nil
}

// ToggleAnnouncement flips the active flag.
func (s *Service) ToggleAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	a, err := s.announcement(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Active = !a.Active
	if err := s.db.WithContext(ctx).Model(a).Update("active", a.Active).Error; err != nil {
		return nil, fmt.Errorf("toggle announcement: %w", err)
	}
	s.announcementChanged("toggle", a.ID)
	return a, nil
}

// DeleteAnnouncement removes an announcement.
func (s *Service) DeleteAnnouncement(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Announcement{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete announcement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.announcementChanged("delete", id)
	return nil
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity controls how the banner is styled.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeveritySuccess, SeverityError:
		return true
	}
	return false
}

// Announcement is a site banner. Listeners only see active ones.
type Announcement struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      Severity  `gorm:"type:varchar(16);not null;default:info" json:"type"`
	Active    bool      `gorm:"not null;index" json:"active"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Announcement) TableName() string {
	return "announcements"
}

// NewAnnouncement creates an active announcement.
func NewAnnouncement(title, message string, severity Severity) *Announcement {
	return &Announcement{
		ID:      uuid.NewString(),
		Title:   title,
		Message: message,
		Type:    severity,
		Active:  true,
	}
}

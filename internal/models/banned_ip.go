/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
)

// BannedIP blocks an address from the send-request relay. IPAddress is unique.
type BannedIP struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	IPAddress string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"ip_address"`
	Reason    *string   `gorm:"type:text" json:"reason"`
	BannedBy  string    `gorm:"type:uuid" json:"banned_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (BannedIP) TableName() string {
	return "banned_ips"
}

// NewBannedIP builds a ban row. An empty reason is stored as NULL.
func NewBannedIP(ip, reason, bannedBy string) *BannedIP {
	b := &BannedIP{
		ID:        uuid.NewString(),
		IPAddress: ip,
		BannedBy:  bannedBy,
	}
	if reason != "" {
		b.Reason = &reason
	}
	return b
}

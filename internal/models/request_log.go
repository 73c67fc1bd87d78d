/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestType is the send-request discriminant.
type RequestType string

const (
	RequestTypeSong    RequestType = "song"
	RequestTypeMessage RequestType = "message"
	RequestTypeVoice   RequestType = "voice"
)

// Valid reports whether t is one of the known request types.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeSong, RequestTypeMessage, RequestTypeVoice:
		return true
	}
	return false
}

// RequestLog records one listener submission for moderation review. Rows are never updated.
type RequestLog struct {
	ID             string      `gorm:"type:uuid;primaryKey" json:"id"`
	IPAddress      string      `gorm:"type:varchar(64);index;not null" json:"ip_address"`
	RequestType    RequestType `gorm:"type:varchar(16);index;not null" json:"request_type"`
	UserAgent      string      `gorm:"type:text" json:"user_agent"`
	RequesterName  string      `gorm:"type:varchar(255)" json:"requester_name"`
	ContentSummary string      `gorm:"type:text" json:"content_summary"`
	AttachmentKey  string      `gorm:"type:varchar(512)" json:"attachment_key,omitempty"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (RequestLog) TableName() string {
	return "request_logs"
}

// NewRequestLog builds a log row with a fresh ID.
func NewRequestLog(ip string, typ RequestType, userAgent, requester, summary string) *RequestLog {
	return &RequestLog{
		ID:             uuid.NewString(),
		IPAddress:      ip,
		RequestType:    typ,
		UserAgent:      userAgent,
		RequesterName:  requester,
		ContentSummary: summary,
	}
}

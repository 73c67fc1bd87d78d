/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleName enumerates the roles stored in user_roles.
type RoleName string

const (
	RoleAdmin RoleName = "admin"
)

// User is an admin back-office account.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles,omitempty"`
}

// UserRole grants one role to one user.
type UserRole struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      RoleName  `gorm:"type:varchar(32);primaryKey" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (UserRole) TableName() string {
	return "user_roles"
}

// NewUser creates a user with a fresh ID and an already-hashed password.
func NewUser(email, passwordHash string) *User {
	return &User{
		ID:       uuid.NewString(),
		Email:    email,
		Password: passwordHash,
	}
}

// RoleNames flattens Roles for token claims.
func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, string(r.Role))
	}
	return out
}

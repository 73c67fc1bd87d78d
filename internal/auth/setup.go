/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rbctelevision/rbcradio/internal/config"
	"github.com/rbctelevision/rbcradio/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Seed statuses reported by SeedAdmins.
const (
	SeedAlreadyExists = "already exists"
	SeedCreated       = "created with admin role"
	SeedRoleFailed    = "created but role failed"
	SeedError         = "error"
)

// SeedResult reports what happened to one configured admin seed.
type SeedResult struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ValidSetupKey reports whether provided matches expected. An empty
// expected key never matches.
func ValidSetupKey(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// SeedAdmins creates each seed account and grants it the admin role.
// The user row and the role row are written separately so a role failure
// leaves the account in place and is reported as such.
func SeedAdmins(ctx context.Context, db *gorm.DB, seeds []config.AdminSeed, logger zerolog.Logger) []SeedResult {
	results := make([]SeedResult, 0, len(seeds))
	for _, seed := range seeds {
		results = append(results, seedAdmin(ctx, db, seed))
	}

	for _, r := range results {
		ev := logger.Info()
		if r.Error != "" {
			ev = logger.Warn().Str("error", r.Error)
		}
		ev.Str("email", r.Email).Str("status", r.Status).Msg("admin seed")
	}
	return results
}

func seedAdmin(ctx context.Context, db *gorm.DB, seed config.AdminSeed) SeedResult {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	res := SeedResult{Email: email}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		res.Status, res.Error = SeedError, err.Error()
		return res
	}
	if count > 0 {
		res.Status = SeedAlreadyExists
		return res
	}

	hash, err := HashPassword(seed.Password)
	if err != nil {
		res.Status, res.Error = SeedError, err.Error()
		return res
	}

	user := models.NewUser(email, hash)
	if err := db.WithContext(ctx).Omit("Roles").Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			res.Status = SeedAlreadyExists
			return res
		}
		res.Status, res.Error = SeedError, err.Error()
		return res
	}

	role := models.UserRole{UserID: user.ID, Role: models.RoleAdmin}
	if err := db.WithContext(ctx).Create(&role).Error; err != nil {
		res.Status, res.Error = SeedRoleFailed, err.Error()
		return res
	}

	res.Status = SeedCreated
	return res
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbctelevision/rbcradio/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
}

// Service authenticates admin accounts and issues session tokens.
type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates an auth service.
func NewService(db *gorm.DB, secret []byte, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// TTL is the lifetime of issued sessions.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login verifies email and password and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !CheckPassword(user.Password, password) {
		s.logger.Info().Str("email", email).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	roles := user.RoleNames()
	token, err := Issue(s.secret, Claims{UserID: user.ID, Email: user.Email, Roles: roles}, now, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Session{
		Token:     token,
		ExpiresAt: now.Add(s.ttl).UTC(),
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     roles,
	}, nil
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ratelimit implements the per-client fixed-window limiter used by the relay functions.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store counts hits per key within a window.
type Store interface {
	// Hit records one request for key at now and returns the hit count of the
	// current window and when that window ends. A window opens on the first hit
	// and a hit strictly after its end opens a new one.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (count int, resetAt time.Time, err error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter applies per-scope limits over a shared Store.
type Limiter struct {
	store  Store
	window time.Duration
	limits map[string]int
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter. Scopes missing from limits are unlimited.
func New(store Store, window time.Duration, limits map[string]int, logger zerolog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		window: window,
		limits: limits,
		now:    time.Now,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured limit for scope, or 0 when unlimited.
func (l *Limiter) Limit(scope string) int {
	return l.limits[scope]
}

// Allow records a request from key against scope.
// Store failures are logged and the request is allowed.
func (l *Limiter) Allow(ctx context.Context, scope, key string) Decision {
	limit := l.limits[scope]
	if limit <= 0 {
		return Decision{Allowed: true}
	}

	count, resetAt, err := l.store.Hit(ctx, scope+":"+key, l.now(), l.window)
	if err != nil {
		l.logger.Warn().Err(err).Str("scope", scope).Msg("rate limit store failed, allowing request")
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}

	if count > limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - count, ResetAt: resetAt}
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package albumart substitutes richer artwork for the station's generic placeholder.
package albumart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbctelevision/rbcradio/internal/cache"
	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a lookup result, hit or miss, is reused.
const DefaultTTL = time.Hour

// LookupFunc finds an artwork URL for a track. "" with a nil error means no match.
type LookupFunc func(ctx context.Context, title, artist string) (string, error)

// Source is one external artwork provider.
type Source interface {
	Name() string
	Find(ctx context.Context, title, artist string) (string, error)
}

type funcSource struct {
	name string
	fn   LookupFunc
}

func (s funcSource) Name() string { return s.name }

func (s funcSource) Find(ctx context.Context, title, artist string) (string, error) {
	return s.fn(ctx, title, artist)
}

// NewSource adapts a lookup method, such as spotify.Client.AlbumArt, to a Source.
func NewSource(name string, fn LookupFunc) Source {
	return funcSource{name: name, fn: fn}
}

// Chain tries sources in order.
type Chain []Source

// Find returns the first non-empty URL. It returns an error only when every
// source failed; a clean miss is ("", nil).
func (c Chain) Find(ctx context.Context, title, artist string) (string, error) {
	var errs []error
	for _, src := range c {
		url, err := src.Find(ctx, title, artist)
		switch {
		case err != nil:
			telemetry.AlbumArtLookups.WithLabelValues(src.Name(), telemetry.OutcomeError).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		case url != "":
			telemetry.AlbumArtLookups.WithLabelValues(src.Name(), telemetry.OutcomeHit).Inc()
			return url, nil
		default:
			telemetry.AlbumArtLookups.WithLabelValues(src.Name(), telemetry.OutcomeMiss).Inc()
		}
	}
	if len(errs) == len(c) && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", nil
}

// Resolver runs the chain behind the shared cache. Concurrent lookups for the
// same pair share one upstream call.
type Resolver struct {
	placeholder string
	chain       Chain
	cache       *cache.Cache
	ttl         time.Duration
	logger      zerolog.Logger
	group       singleflight.Group
}

// NewResolver creates a resolver. ttl <= 0 uses DefaultTTL.
func NewResolver(placeholder string, chain Chain, c *cache.Cache, ttl time.Duration, logger zerolog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		placeholder: placeholder,
		chain:       chain,
		cache:       c,
		ttl:         ttl,
		logger:      logger.With().Str("component", "albumart").Logger(),
	}
}

// IsPlaceholder reports whether rawURL is the station's generic artwork.
func (r *Resolver) IsPlaceholder(rawURL string) bool {
	return r.placeholder != "" && strings.TrimSpace(rawURL) == r.placeholder
}

// Lookup returns artwork for a pair, or "" when no source has any.
func (r *Resolver) Lookup(ctx context.Context, title, artist string) (string, error) {
	if cached, ok := r.cache.GetAlbumArt(ctx, title, artist); ok {
		telemetry.AlbumArtLookups.WithLabelValues("cache", telemetry.OutcomeCached).Inc()
		return cached.URL, nil
	}

	key := cache.AlbumArtKey(title, artist)
	v, err, _ := r.group.Do(key, func() (any, error) {
		ctx, span := telemetry.StartSpan(ctx, "albumart.lookup",
			attribute.String("track.title", title),
			attribute.String("track.artist", artist),
		)
		defer span.End()

		url, err := r.chain.Find(ctx, title, artist)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		entry := cache.CachedAlbumArt{URL: url, Found: url != ""}
		if err := r.cache.SetAlbumArt(ctx, title, artist, entry, r.ttl); err != nil {
			r.logger.Debug().Err(err).Msg("failed to cache album art")
		}
		return url, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Resolve returns richer art for placeholder input, and rawURL in every other case.
func (r *Resolver) Resolve(ctx context.Context, rawURL, title, artist string) string {
	if !r.IsPlaceholder(rawURL) || strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		return rawURL
	}
	url, err := r.Lookup(ctx, title, artist)
	if err != nil {
		r.logger.Debug().Err(err).Str("title", title).Str("artist", artist).Msg("album art lookup failed")
		return rawURL
	}
	if url == "" {
		return rawURL
	}
	return url
}

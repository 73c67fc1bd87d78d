/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a two-tier (process memory, then Redis) JSON cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes for cached values.
const (
	KeyAlbumArt            = "rbcradio:cache:albumart:" // + pair hash
	KeySchedule            = "rbcradio:cache:schedule"
	KeyScheduleLastGood    = "rbcradio:cache:schedule:last"
	KeyPodcasts            = "rbcradio:cache:podcasts"
	KeyPodcast             = "rbcradio:cache:podcast:"  // + podcast id
	KeyEpisodes            = "rbcradio:cache:episodes:" // + podcast id
	KeyActiveAnnouncements = "rbcradio:cache:announcements:active"
)

// Cache reads the local tier first, then Redis. Writes go to both.
// A Redis error disables the Redis tier for the rest of the process; the local tier keeps working.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	disabled bool
	local    map[string]localEntry
}

// maxLocalEntries caps the local tier. Album-art keys are chosen by clients,
// so the map must not grow with every distinct pair.
const maxLocalEntries = 10000

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// New creates a cache. client may be nil for a local-only cache.
func New(client *redis.Client, logger zerolog.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		now:    time.Now,
		local:  make(map[string]localEntry),
	}
}

// IsAvailable reports whether the Redis tier is in use.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.mu.Lock()
	wasDisabled := c.disabled
	c.disabled = true
	c.mu.Unlock()

	if !wasDisabled {
		c.logger.Warn().Err(err).Str("operation", operation).Msg("disabling Redis cache tier after error")
	}
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if data, ok := c.getLocal(key); ok {
		if err := json.Unmarshal(data, dest); err == nil {
			telemetry.CacheOperations.WithLabelValues("local", telemetry.OutcomeHit).Inc()
			return true
		}
	}

	if !c.IsAvailable() {
		telemetry.CacheOperations.WithLabelValues("local", telemetry.OutcomeMiss).Inc()
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheOperations.WithLabelValues("redis", telemetry.OutcomeMiss).Inc()
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}

	if ttl, err := c.client.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		c.setLocal(key, data, ttl)
	}
	telemetry.CacheOperations.WithLabelValues("redis", telemetry.OutcomeHit).Inc()
	return true
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	c.setLocal(key, data, ttl)

	if !c.IsAvailable() {
		return nil
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// Delete removes keys from both tiers.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.local, k)
	}
	c.mu.Unlock()

	if !c.IsAvailable() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}

// DeletePrefix removes every key starting with prefix from both tiers.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.local {
		if strings.HasPrefix(k, prefix) {
			delete(c.local, k)
		}
	}
	c.mu.Unlock()

	if !c.IsAvailable() {
		return nil
	}

	// SCAN rather than KEYS so large keyspaces don't block Redis.
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *Cache) getLocal(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.local, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

func (c *Cache) setLocal(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.local[key]; !exists && len(c.local) >= maxLocalEntries {
		if c.sweepLocked(now) == 0 {
			// Still full of live entries: drop an arbitrary one.
			for k := range c.local {
				delete(c.local, k)
				break
			}
		}
	}
	c.local[key] = localEntry{data: data, expiresAt: now.Add(ttl)}
}

// Sweep drops expired local entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range c.local {
		if !now.Before(e.expiresAt) {
			delete(c.local, k)
			removed++
		}
	}
	return removed
}

// LocalLen returns the number of local entries, expired ones included.
func (c *Cache) LocalLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.local)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug().Int("removed", n).Msg("swept expired cache entries")
			}
		}
	}
}

// Album art

// CachedAlbumArt is a lookup result. Found=false records a miss so it is not retried within the TTL.
type CachedAlbumArt struct {
	URL   string `json:"url"`
	Found bool   `json:"found"`
}

// AlbumArtKey hashes the normalized (title, artist) pair.
func AlbumArtKey(title, artist string) string {
	norm := strings.ToLower(strings.TrimSpace(title)) + "\x00" + strings.ToLower(strings.TrimSpace(artist))
	sum := sha256.Sum256([]byte(norm))
	return KeyAlbumArt + hex.EncodeToString(sum[:16])
}

// GetAlbumArt returns the cached lookup for a pair.
func (c *Cache) GetAlbumArt(ctx context.Context, title, artist string) (CachedAlbumArt, bool) {
	var art CachedAlbumArt
	if !c.Get(ctx, AlbumArtKey(title, artist), &art) {
		return CachedAlbumArt{}, false
	}
	return art, true
}

// SetAlbumArt caches a lookup result for a pair.
func (c *Cache) SetAlbumArt(ctx context.Context, title, artist string, art CachedAlbumArt, ttl time.Duration) error {
	return c.Set(ctx, AlbumArtKey(title, artist), art, ttl)
}

// InvalidateAnnouncements drops the public active-announcements list.
func (c *Cache) InvalidateAnnouncements(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating announcements cache")
	return c.Delete(ctx, KeyActiveAnnouncements)
}

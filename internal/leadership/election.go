/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects one node per role through a Redis lease.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
)

const (
	keyPrefix = "rbcradio:leader:"

	// Default lease duration - leader must renew before this expires
	defaultLeaseDuration = 15 * time.Second

	// Default retry interval - how often the lease is renewed or contested
	defaultRetryInterval = 5 * time.Second
)

// renewScript extends the lease only while we still own it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Config configures one election.
type Config struct {
	// Role names the elected duty, e.g. "nowplaying".
	Role   string
	NodeID string

	LeaseDuration time.Duration
	RetryInterval time.Duration
}

// Election holds or contests the lease for Config.Role.
type Election struct {
	client *redis.Client
	cfg    Config
	key    string
	logger zerolog.Logger

	leader   atomic.Bool
	changeCh chan bool
}

// New creates an election on client. Run must be called to campaign.
func New(client *redis.Client, cfg Config, logger zerolog.Logger) (*Election, error) {
	if client == nil {
		return nil, errors.New("leadership: redis client is required")
	}
	if cfg.Role == "" || cfg.NodeID == "" {
		return nil, errors.New("leadership: role and node id are required")
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = defaultLeaseDuration
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.RetryInterval >= cfg.LeaseDuration {
		return nil, fmt.Errorf("leadership: retry interval %s must be shorter than lease %s", cfg.RetryInterval, cfg.LeaseDuration)
	}

	return &Election{
		client:   client,
		cfg:      cfg,
		key:      keyPrefix + cfg.Role,
		logger:   logger.With().Str("component", "leader_election").Str("role", cfg.Role).Logger(),
		changeCh: make(chan bool, 1),
	}, nil
}

// IsLeader reports whether this node held the lease at the last attempt.
func (e *Election) IsLeader() bool {
	return e.leader.Load()
}

// Changes receives the new status after every transition. Sends never block;
// a slow reader only sees the latest change.
func (e *Election) Changes() <-chan bool {
	return e.changeCh
}

// Leader returns the node id holding the lease, or "" when nobody does.
func (e *Election) Leader(ctx context.Context) (string, error) {
	id, err := e.client.Get(ctx, e.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

// Run campaigns immediately and then every RetryInterval until ctx is done,
// releasing the lease on the way out.
func (e *Election) Run(ctx context.Context) {
	e.logger.Info().Str("node_id", e.cfg.NodeID).Dur("lease", e.cfg.LeaseDuration).Msg("starting leader election")

	ticker := time.NewTicker(e.cfg.RetryInterval)
	defer ticker.Stop()

	e.Campaign(ctx)
	for {
		select {
		case <-ctx.Done():
			e.release()
			return
		case <-ticker.C:
			e.Campaign(ctx)
		}
	}
}

// Campaign makes one attempt to acquire or renew the lease.
func (e *Election) Campaign(ctx context.Context) {
	held, err := e.tryAcquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("leader lease attempt failed")
		}
		held = false
	}
	e.setLeader(held)
}

func (e *Election) tryAcquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.key, e.cfg.NodeID, e.cfg.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, e.client, []string{e.key}, e.cfg.NodeID, e.cfg.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return renewed == 1, nil
}

func (e *Election) release() {
	wasLeader := e.leader.Load()
	e.setLeader(false)
	if !wasLeader {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, e.client, []string{e.key}, e.cfg.NodeID).Err(); err != nil {
		e.logger.Error().Err(err).Msg("failed to release leader lease")
		return
	}
	e.logger.Info().Msg("released leader lease")
}

func (e *Election) setLeader(held bool) {
	if e.leader.Swap(held) == held {
		return
	}

	status, change := 0.0, "lost"
	if held {
		status, change = 1, "acquired"
		e.logger.Info().Str("node_id", e.cfg.NodeID).Msg("acquired leadership")
	} else {
		e.logger.Warn().Str("node_id", e.cfg.NodeID).Msg("lost leadership")
	}
	telemetry.LeaderElectionStatus.WithLabelValues(e.cfg.Role, e.cfg.NodeID).Set(status)
	telemetry.LeaderElectionChanges.WithLabelValues(e.cfg.Role, e.cfg.NodeID, change).Inc()

	// Keep only the latest status in the channel.
	select {
	case <-e.changeCh:
	default:
	}
	select {
	case e.changeCh <- held:
	default:
	}
}

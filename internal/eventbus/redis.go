/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisChannelPrefix = "rbcradio:events:"

// RedisBus delivers events locally and fans them out to other nodes over Redis pub/sub.
// After MaxFailures consecutive publish errors it stops using Redis and stays local.
type RedisBus struct {
	local  *events.Bus
	client *redis.Client
	nodeID string
	logger zerolog.Logger

	maxFails int

	mu          sync.Mutex
	failCount   int
	useFallback bool

	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus pings client and falls back to local-only delivery when it is unreachable.
func NewRedisBus(ctx context.Context, client *redis.Client, nodeID string, logger zerolog.Logger) *RedisBus {
	rb := &RedisBus{
		local:    events.NewBus(),
		client:   client,
		nodeID:   nodeID,
		logger:   logger.With().Str("component", "eventbus").Str("broker", "redis").Logger(),
		maxFails: 5,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if client == nil || client.Ping(pingCtx).Err() != nil {
		rb.logger.Warn().Msg("Redis unavailable, event bus is local only")
		rb.useFallback = true
	}
	return rb
}

// Start subscribes to remote events. It returns once the subscription is confirmed.
func (rb *RedisBus) Start(ctx context.Context) error {
	if rb.fallback() {
		return nil
	}

	ctx, rb.cancel = context.WithCancel(ctx)
	rb.pubsub = rb.client.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := rb.pubsub.Receive(ctx); err != nil {
		rb.cancel()
		rb.handleFailure()
		return err
	}

	rb.wg.Add(1)
	go rb.receive(ctx, rb.pubsub.Channel())
	rb.logger.Info().Str("node_id", rb.nodeID).Msg("Redis event bus subscribed")
	return nil
}

func (rb *RedisBus) receive(ctx context.Context, ch <-chan *redis.Message) {
	defer rb.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			msg, err := unmarshalMessage([]byte(raw.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Str("channel", raw.Channel).Msg("dropping malformed event")
				continue
			}
			if msg.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(msg.EventType, msg.Payload)
		}
	}
}

// Publish delivers locally and, while Redis is healthy, to every other node.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)
	if rb.fallback() {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	channel := redisChannelPrefix + strings.ReplaceAll(string(eventType), " ", "_")
	if err := rb.client.Publish(ctx, channel, data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Subscribe registers a local subscriber. Remote events are delivered to it too.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	return rb.local.Subscribe(eventType)
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Close stops the receiver. The Redis client is owned by the caller.
func (rb *RedisBus) Close() error {
	if rb.cancel != nil {
		rb.cancel()
	}
	var err error
	if rb.pubsub != nil {
		err = rb.pubsub.Close()
	}
	rb.wg.Wait()
	return err
}

func (rb *RedisBus) fallback() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.useFallback
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, event bus is local only")
		rb.useFallback = true
	}
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package events is the in-process publish/subscribe hub that decouples
// moderation edits, submissions and now-playing updates from their consumers.
package events

import (
	"sync"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
)

// EventType names a topic.
type EventType string

const (
	// EventNowPlaying fires when the current track changes.
	EventNowPlaying EventType = "now_playing"
	// EventNowPlayingSnapshot carries the leader's full snapshot to followers.
	EventNowPlayingSnapshot EventType = "now_playing.snapshot"
	// EventRequestSubmitted fires after a listener submission was relayed.
	EventRequestSubmitted EventType = "request.submitted"

	EventAnnouncementChanged EventType = "cache.announcement_changed"
	EventBanChanged          EventType = "cache.ban_changed"
)

// subscriberBuffer bounds how far a subscriber may fall behind before
// deliveries to it are dropped.
const subscriberBuffer = 8

// Publisher is what services depend on to emit events.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is a Publisher that can also deliver events back to local subscribers.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Payload is the JSON-compatible body of an event.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus fans each event out to the subscribers of its type. Publish never
// blocks; a full subscriber misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType]map[Subscriber]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType]map[Subscriber]struct{})}
}

// Subscribe registers a new buffered subscriber for eventType.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[eventType]
	if !ok {
		set = make(map[Subscriber]struct{})
		b.subs[eventType] = set
	}
	set[ch] = struct{}{}
	return ch
}

// Publish delivers payload to every current subscriber of eventType.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	telemetry.EventsPublished.WithLabelValues(string(eventType)).Inc()

	// Deliver under the read lock so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
			telemetry.EventsDropped.WithLabelValues(string(eventType)).Inc()
		}
	}
}

// Unsubscribe removes sub and closes it. Unknown subscribers are ignored,
// so calling it twice is safe.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[eventType]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, eventType)
	}
	close(sub)
}

// Subscribers reports how many subscribers eventType has.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

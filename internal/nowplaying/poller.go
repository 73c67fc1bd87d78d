/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package nowplaying keeps the station's current track fresh on a fixed interval.
package nowplaying

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rbctelevision/rbcradio/internal/azuracast"
	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultHistorySize = 5
)

// Fetcher returns the upstream now-playing payload.
type Fetcher interface {
	NowPlaying(ctx context.Context) (*azuracast.NowPlaying, error)
}

// ArtResolver substitutes richer art for placeholder URLs.
type ArtResolver interface {
	Resolve(ctx context.Context, rawURL, title, artist string) string
}

// Track is the metadata shown in the player.
type Track struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Art    string `json:"art"`
}

// Snapshot is one successful poll. Each poll replaces the previous snapshot entirely.
type Snapshot struct {
	Track        *Track    `json:"now_playing"`
	History      []Track   `json:"history"`
	Listeners    int       `json:"listeners"`
	Live         bool      `json:"live"`
	StreamerName string    `json:"streamer_name,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Gate decides whether this node should poll upstream.
type Gate interface {
	IsLeader() bool
}

// Options tune the poller.
type Options struct {
	Interval    time.Duration
	HistorySize int
	Now         func() time.Time
	// Leader, when set, restricts polling to the elected node. Every
	// successful poll is then also published as a full snapshot so
	// followers can Mirror it.
	Leader Gate
}

// Poller fetches now-playing data every Interval. Fetches are never cancelled
// by later ones; whichever resolves last sets the snapshot.
type Poller struct {
	fetcher  Fetcher
	resolver ArtResolver
	bus      events.Publisher
	logger   zerolog.Logger
	interval time.Duration
	history  int
	now      func() time.Time
	leader   Gate

	mu      sync.RWMutex
	current Snapshot
	ok      bool

	inflight sync.WaitGroup
}

// NewPoller creates a poller. resolver and bus may be nil.
func NewPoller(fetcher Fetcher, resolver ArtResolver, bus events.Publisher, opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		fetcher:  fetcher,
		resolver: resolver,
		bus:      bus,
		logger:   logger.With().Str("component", "nowplaying").Logger(),
		interval: opts.Interval,
		history:  opts.HistorySize,
		now:      opts.Now,
		leader:   opts.Leader,
	}
}

// Current returns the latest snapshot and whether any poll has succeeded.
func (p *Poller) Current() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.ok
}

// Run polls immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Debug().Dur("interval", p.interval).Msg("now-playing poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			p.logger.Debug().Msg("now-playing poller stopped")
			return
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

func (p *Poller) polling() bool {
	return p.leader == nil || p.leader.IsLeader()
}

func (p *Poller) spawn(ctx context.Context) {
	if !p.polling() {
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		_ = p.Poll(ctx)
	}()
}

// Poll runs one fetch synchronously. A failure keeps the previous snapshot.
func (p *Poller) Poll(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "nowplaying.poll")
	defer span.End()

	np, err := p.fetcher.NowPlaying(ctx)
	if err == nil && np == nil {
		err = azuracast.ErrEmptyPayload
	}
	if err != nil {
		span.RecordError(err)
		telemetry.NowPlayingPolls.WithLabelValues(telemetry.OutcomeError).Inc()
		p.logger.Warn().Err(err).Msg("now-playing fetch failed, keeping previous snapshot")
		return err
	}
	telemetry.NowPlayingPolls.WithLabelValues(telemetry.OutcomeSuccess).Inc()

	snap := p.build(ctx, np)
	p.store(snap)
	return nil
}

func (p *Poller) build(ctx context.Context, np *azuracast.NowPlaying) Snapshot {
	snap := Snapshot{
		Listeners:    np.Listeners.Current,
		Live:         np.Live.IsLive,
		StreamerName: np.Live.StreamerName,
		FetchedAt:    p.now(),
		History:      []Track{},
	}
	if np.NowPlaying != nil {
		t := p.track(ctx, np.NowPlaying.Song)
		snap.Track = &t
	}
	for i, item := range np.SongHistory {
		if i >= p.history {
			break
		}
		snap.History = append(snap.History, p.track(ctx, item.Song))
	}
	return snap
}

func (p *Poller) track(ctx context.Context, s azuracast.Song) Track {
	art := s.Art
	if p.resolver != nil {
		art = p.resolver.Resolve(ctx, s.Art, s.Title, s.Artist)
	}
	return Track{Title: s.Title, Artist: s.Artist, Album: s.Album, Art: art}
}

func (p *Poller) store(snap Snapshot) {
	p.mu.Lock()
	prev, hadPrev := p.current, p.ok
	p.current = snap
	p.ok = true
	p.mu.Unlock()

	if p.bus == nil {
		return
	}
	if p.leader != nil {
		p.publishSnapshot(snap)
	}
	if snap.Track == nil {
		return
	}
	if hadPrev && prev.Track != nil && prev.Track.Title == snap.Track.Title && prev.Track.Artist == snap.Track.Artist {
		return
	}
	p.bus.Publish(events.EventNowPlaying, events.Payload{
		"title":  snap.Track.Title,
		"artist": snap.Track.Artist,
		"art":    snap.Track.Art,
	})
}

func (p *Poller) publishSnapshot(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		p.logger.Error().Err(err).Msg("encode now-playing snapshot")
		return
	}
	p.bus.Publish(events.EventNowPlayingSnapshot, events.Payload{"snapshot": string(data)})
}

// Mirror applies snapshots published by the elected poller until ctx is
// done. Snapshots are ignored while this node is the leader itself.
func (p *Poller) Mirror(ctx context.Context, broker events.Broker) {
	sub := broker.Subscribe(events.EventNowPlayingSnapshot)
	defer broker.Unsubscribe(events.EventNowPlayingSnapshot, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			if p.polling() {
				continue
			}
			raw, _ := payload["snapshot"].(string)
			var snap Snapshot
			if err := json.Unmarshal([]byte(raw), &snap); err != nil {
				p.logger.Warn().Err(err).Msg("dropping malformed now-playing snapshot")
				continue
			}
			p.mu.Lock()
			if !p.ok || !snap.FetchedAt.Before(p.current.FetchedAt) {
				p.current = snap
				p.ok = true
			}
			p.mu.Unlock()
		}
	}
}

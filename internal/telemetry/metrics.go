/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbcradio_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rbcradio_http_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// Relay functions
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_ratelimit_rejections_total",
		Help: "Requests rejected by the per-IP limiter.",
	}, []string{"scope"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_upstream_requests_total",
		Help: "Outbound calls to AzuraCast, Spotify, iTunes and Discord.",
	}, []string{"service", "outcome"})

	AlbumArtLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_albumart_lookups_total",
		Help: "Album art lookups by source and outcome (hit, miss, error, cached).",
	}, []string{"source", "outcome"})

	ListenerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_listener_requests_total",
		Help: "Listener submissions by type and outcome.",
	}, []string{"type", "outcome"})

	NowPlayingPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_nowplaying_polls_total",
		Help: "Now-playing polls by outcome.",
	}, []string{"outcome"})

	// Events
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_events_published_total",
		Help: "Events published on the in-process bus.",
	}, []string{"event"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_events_dropped_total",
		Help: "Event deliveries skipped because a subscriber was full.",
	}, []string{"event"})

	// Leader election
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rbcradio_leader_election_status",
		Help: "1 while this node holds the lease for a role.",
	}, []string{"role", "node_id"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_leader_election_changes_total",
		Help: "Lease acquisitions and losses.",
	}, []string{"role", "node_id", "change"})

	// Database
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbcradio_db_query_duration_seconds",
		Help:    "Database operation latency.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_db_errors_total",
		Help: "Database operations that returned an error.",
	}, []string{"operation"})

	// Cache
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcradio_cache_operations_total",
		Help: "Cache reads by tier and result.",
	}, []string{"tier", "result"})
)

// Outcome labels shared by the counters above.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeCached  = "cached"
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rbctelevision/rbcradio/internal/albumart"
	"github.com/rbctelevision/rbcradio/internal/api"
	"github.com/rbctelevision/rbcradio/internal/auth"
	"github.com/rbctelevision/rbcradio/internal/azuracast"
	"github.com/rbctelevision/rbcradio/internal/cache"
	"github.com/rbctelevision/rbcradio/internal/config"
	"github.com/rbctelevision/rbcradio/internal/db"
	"github.com/rbctelevision/rbcradio/internal/discord"
	"github.com/rbctelevision/rbcradio/internal/eventbus"
	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/rbctelevision/rbcradio/internal/itunes"
	"github.com/rbctelevision/rbcradio/internal/leadership"
	"github.com/rbctelevision/rbcradio/internal/logbuffer"
	"github.com/rbctelevision/rbcradio/internal/moderation"
	"github.com/rbctelevision/rbcradio/internal/nowplaying"
	"github.com/rbctelevision/rbcradio/internal/ratelimit"
	"github.com/rbctelevision/rbcradio/internal/requests"
	"github.com/rbctelevision/rbcradio/internal/spotify"
	"github.com/rbctelevision/rbcradio/internal/storage"
	"github.com/rbctelevision/rbcradio/internal/telemetry"
	"github.com/rbctelevision/rbcradio/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	nodeID     string
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	redis     *redis.Client
	cache     *cache.Cache
	logBuffer *logbuffer.Buffer
	api       *api.API
	bus       events.Broker
	redisBus  *eventbus.RedisBus
	poller    *nowplaying.Poller
	election  *leadership.Election
	memLimits *ratelimit.MemoryStore

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	if cfg.TracingEnabled {
		router.Use(telemetry.TracingMiddleware)
	}
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Voice memos arrive as base64 in a JSON body; allow slow uploads.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// cacheSweepInterval is how often expired local cache entries are dropped.
const cacheSweepInterval = 5 * time.Minute

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	ctx := context.Background()

	if s.cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingOptions{
			Endpoint:   s.cfg.OTLPEndpoint,
			Version:    version.Version,
			SampleRate: s.cfg.TracingSampleRate,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		s.DeferClose(func() error { return shutdown(context.Background()) })
	}

	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database

	if s.cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		s.DeferClose(func() error { return s.redis.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.redis.Ping(pingCtx).Err(); err != nil {
			s.logger.Warn().Err(err).Str("addr", s.cfg.RedisAddr).Msg("redis ping failed, shared tiers will degrade to local")
		}
		cancel()
	}

	s.cache = cache.New(s.redis, s.logger)
	s.nodeID = eventbus.NodeID(s.cfg.NodeID)

	if err := s.initEventBus(ctx); err != nil {
		return err
	}

	limiter, err := s.initRateLimiter()
	if err != nil {
		return err
	}

	loc, err := s.cfg.Location()
	if err != nil {
		return err
	}

	httpClient := telemetry.HTTPClient(15 * time.Second)

	azura, err := azuracast.NewClient(s.cfg.AzuraBaseURL, s.cfg.StationShortcode, s.cfg.AzuraAPIKey, httpClient)
	if err != nil {
		return fmt.Errorf("azuracast client: %w", err)
	}

	spot := spotify.New(spotify.Config{
		ClientID:     s.cfg.SpotifyClientID,
		ClientSecret: s.cfg.SpotifyClientSecret,
		TokenURL:     s.cfg.SpotifyTokenURL,
		APIBaseURL:   s.cfg.SpotifyAPIBaseURL,
	})
	if !spot.Configured() {
		s.logger.Warn().Msg("Spotify credentials not configured, search and Spotify art are disabled")
	}
	itc := itunes.New(s.cfg.ITunesBaseURL, httpClient)

	chain := albumart.Chain{itunesSource(itc)}
	if spot.Configured() {
		chain = albumart.Chain{albumart.NewSource(spot.Name(), spot.AlbumArt), itunesSource(itc)}
	}
	resolver := albumart.NewResolver(s.cfg.PlaceholderArtURL, chain, s.cache, s.cfg.AlbumArtTTL, s.logger)

	pollOpts := nowplaying.Options{
		Interval:    s.cfg.NowPlayingInterval,
		HistorySize: s.cfg.NowPlayingHistory,
	}
	if s.cfg.LeaderElection {
		if s.redis == nil {
			return errors.New("leader election requires RBC_REDIS_ADDR")
		}
		s.election, err = leadership.New(s.redis, leadership.Config{
			Role:          "nowplaying",
			NodeID:        s.nodeID,
			LeaseDuration: s.cfg.LeaderLease,
			RetryInterval: s.cfg.LeaderLease / 3,
		}, s.logger)
		if err != nil {
			return err
		}
		pollOpts.Leader = s.election
	}
	s.poller = nowplaying.NewPoller(azura, resolver, s.bus, pollOpts, s.logger)

	store, err := storage.New(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	notifier := discord.NewClient(s.cfg.DiscordWebhookURL, httpClient, s.logger)
	if !notifier.Configured() {
		s.logger.Warn().Msg("Discord webhook not configured, send-request will fail")
	}

	mod := moderation.NewService(database, s.bus, s.logger)
	reqSvc := requests.NewService(database, notifier, requests.ServiceOptions{
		Bans:  mod,
		Store: store,
		Bus:   s.bus,
		Limits: requests.Limits{
			MaxVoiceBytes:   int(s.cfg.MaxVoiceBytes),
			MaxVoiceSeconds: s.cfg.MaxVoiceSeconds,
		},
	}, s.logger)
	authSvc := auth.NewService(database, []byte(s.cfg.JWTSigningKey), s.cfg.JWTTTL, s.logger)

	s.api = api.New(api.Options{
		DB:               database,
		Azura:            azura,
		Search:           spot,
		Art:              resolver,
		NowPlaying:       s.poller,
		Requests:         reqSvc,
		Moderation:       mod,
		Auth:             authSvc,
		Store:            store,
		Cache:            s.cache,
		Limiter:          limiter,
		LogBuffer:        s.logBuffer,
		JWTSecret:        []byte(s.cfg.JWTSigningKey),
		AdminLoginPath:   s.cfg.AdminLoginPath,
		SetupKey:         s.cfg.AdminSetupKey,
		AdminSeeds:       s.cfg.AdminSeeds,
		Location:         loc,
		WindowDays:       s.cfg.ScheduleWindowDays,
		ScheduleCacheTTL: s.cfg.ScheduleCacheTTL,
		ShowsCacheTTL:    s.cfg.ShowsCacheTTL,
		SecureCookies:    s.cfg.Environment == "production",
	}, s.logger)

	return nil
}

func itunesSource(c *itunes.Client) albumart.Source {
	return albumart.NewSource(c.Name(), c.Artwork)
}

func (s *Server) initEventBus(ctx context.Context) error {
	nodeID := s.nodeID

	switch s.cfg.EventBus {
	case "", "memory":
		s.bus = events.NewBus()
	case "redis":
		if s.redis == nil {
			return errors.New("event bus redis requires RBC_REDIS_ADDR")
		}
		s.redisBus = eventbus.NewRedisBus(ctx, s.redis, nodeID, s.logger)
		s.bus = s.redisBus
		s.DeferClose(s.redisBus.Close)
	case "nats":
		nb := eventbus.NewNATSBus(s.cfg.NATSURL, nodeID, s.logger)
		s.bus = nb
		s.DeferClose(nb.Close)
	default:
		return fmt.Errorf("unknown event bus %q", s.cfg.EventBus)
	}

	s.logger.Info().Str("event_bus", s.cfg.EventBus).Str("node_id", nodeID).Msg("event bus ready")
	return nil
}

func (s *Server) initRateLimiter() (*ratelimit.Limiter, error) {
	var store ratelimit.Store
	switch s.cfg.RateLimitBackend {
	case "", "memory":
		s.memLimits = ratelimit.NewMemoryStore()
		store = s.memLimits
	case "redis":
		if s.redis == nil {
			return nil, errors.New("rate limit backend redis requires RBC_REDIS_ADDR")
		}
		store = ratelimit.NewRedisStore(s.redis)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", s.cfg.RateLimitBackend)
	}
	return ratelimit.New(store, s.cfg.RateLimitWindow, s.cfg.RateLimits, s.logger), nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.redisBus != nil {
		if err := s.redisBus.Start(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("redis event bus subscription failed, delivering locally")
		}
	}

	if s.election != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.election.Run(ctx)
		}()
	}

	if s.poller != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.poller.Run(ctx)
		}()
		if s.election != nil {
			s.bgWG.Add(1)
			go func() {
				defer s.bgWG.Done()
				s.poller.Mirror(ctx, s.bus)
			}()
		}
	}

	if s.memLimits != nil {
		interval := s.cfg.RateLimitWindow
		if interval <= 0 {
			interval = time.Minute
		}
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.memLimits.RunSweeper(ctx, interval)
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.cache.RunSweeper(ctx, cacheSweepInterval)
		}()
	}

	if s.cache != nil && s.bus != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached announcements whenever any node edits them.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	changed := s.bus.Subscribe(events.EventAnnouncementChanged)
	defer s.bus.Unsubscribe(events.EventAnnouncementChanged, changed)

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case payload, ok := <-changed:
			if !ok {
				return
			}
			s.logger.Debug().Interface("payload", payload).Msg("invalidating announcement cache")
			if err := s.cache.InvalidateAnnouncements(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("announcement cache invalidation failed")
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok", "version": version.Version}
		if s.poller != nil {
			_, ok := s.poller.Current()
			resp["now_playing"] = ok
		}
		if s.election != nil {
			resp["leader"] = s.election.IsLeader()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

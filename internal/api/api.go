/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rbctelevision/rbcradio/internal/albumart"
	"github.com/rbctelevision/rbcradio/internal/auth"
	"github.com/rbctelevision/rbcradio/internal/azuracast"
	"github.com/rbctelevision/rbcradio/internal/cache"
	"github.com/rbctelevision/rbcradio/internal/config"
	"github.com/rbctelevision/rbcradio/internal/logbuffer"
	"github.com/rbctelevision/rbcradio/internal/moderation"
	"github.com/rbctelevision/rbcradio/internal/nowplaying"
	"github.com/rbctelevision/rbcradio/internal/ratelimit"
	"github.com/rbctelevision/rbcradio/internal/requests"
	"github.com/rbctelevision/rbcradio/internal/spotify"
	"github.com/rbctelevision/rbcradio/internal/storage"
	"gorm.io/gorm"
)

// NowPlaying exposes the poller's latest snapshot.
type NowPlaying interface {
	Current() (nowplaying.Snapshot, bool)
}

// TrackSearcher backs search-spotify.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string) ([]spotify.Track, error)
}

// Options collects the services the handlers depend on. Nil services
// disable the routes that need them.
type Options struct {
	DB         *gorm.DB
	Azura      *azuracast.Client
	Search     TrackSearcher
	Art        *albumart.Resolver
	NowPlaying NowPlaying
	Requests   *requests.Service
	Moderation *moderation.Service
	Auth       *auth.Service
	Store      storage.ObjectStore
	Cache      *cache.Cache
	Limiter    *ratelimit.Limiter
	LogBuffer  *logbuffer.Buffer

	JWTSecret      []byte
	AdminLoginPath string
	SetupKey       string
	AdminSeeds     []config.AdminSeed

	Location         *time.Location
	WindowDays       int
	ScheduleCacheTTL time.Duration
	ShowsCacheTTL    time.Duration
	SecureCookies    bool
	Now              func() time.Time
}

// API exposes HTTP handlers.
type API struct {
	db         *gorm.DB
	azura      *azuracast.Client
	search     TrackSearcher
	art        *albumart.Resolver
	nowPlaying NowPlaying
	requests   *requests.Service
	moderation *moderation.Service
	authSvc    *auth.Service
	store      storage.ObjectStore
	cache      *cache.Cache
	limiter    *ratelimit.Limiter
	logBuffer  *logbuffer.Buffer

	jwtSecret      []byte
	adminLoginPath string
	setupKey       string
	adminSeeds     []config.AdminSeed

	loc           *time.Location
	windowDays    int
	scheduleTTL   time.Duration
	showsTTL      time.Duration
	secureCookies bool
	now           func() time.Time

	logger zerolog.Logger
}

// New creates the API router wrapper.
func New(opts Options, logger zerolog.Logger) *API {
	a := &API{
		db:             opts.DB,
		azura:          opts.Azura,
		search:         opts.Search,
		art:            opts.Art,
		nowPlaying:     opts.NowPlaying,
		requests:       opts.Requests,
		moderation:     opts.Moderation,
		authSvc:        opts.Auth,
		store:          opts.Store,
		cache:          opts.Cache,
		limiter:        opts.Limiter,
		logBuffer:      opts.LogBuffer,
		jwtSecret:      opts.JWTSecret,
		adminLoginPath: opts.AdminLoginPath,
		setupKey:       opts.SetupKey,
		adminSeeds:     opts.AdminSeeds,
		loc:            opts.Location,
		windowDays:     opts.WindowDays,
		scheduleTTL:    opts.ScheduleCacheTTL,
		showsTTL:       opts.ShowsCacheTTL,
		secureCookies:  opts.SecureCookies,
		now:            opts.Now,
		logger:         logger.With().Str("component", "api").Logger(),
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.cache == nil {
		a.cache = cache.New(nil, logger)
	}
	if a.adminLoginPath == "" {
		a.adminLoginPath = "/admin"
	}
	if a.scheduleTTL <= 0 {
		a.scheduleTTL = time.Minute
	}
	if a.showsTTL <= 0 {
		a.showsTTL = 5 * time.Minute
	}
	return a
}

// Routes registers the relay functions and the JSON API.
func (a *API) Routes(r chi.Router) {
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
			MaxAge:         300,
		}))
		r.Options("/*", a.handleRelayOptions)

		r.With(a.limit(config.ScopeGetSchedule)).Post("/get-schedule", a.handleGetSchedule)
		r.With(a.limit(config.ScopeGetPodcastAsset)).Post("/get-podcast-asset", a.handleGetPodcastAsset)
		r.With(a.limit(config.ScopeAlbumArt)).Post("/get-spotify-album-art", a.handleGetAlbumArt)
		r.With(a.limit(config.ScopeSearchSpotify)).Post("/search-spotify", a.handleSearchSpotify)
		r.With(a.limit(config.ScopeSendRequest)).Post("/send-request", a.handleSendRequest)
		r.With(a.limit(config.ScopeSetupAdmin)).Post("/setup-admin", a.handleSetupAdmin)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(a.jwtSecret))

		r.Get("/health", a.handleHealth)

		// Listener endpoints
		r.Get("/schedule", a.handleSchedule)
		r.Get("/schedule.ics", a.handleScheduleICal)
		r.Get("/now-playing", a.handleNowPlaying)
		r.Get("/shows", a.handleShows)
		r.Get("/shows/{showID}", a.handleShow)
		r.Get("/shows/{showID}/episodes", a.handleEpisodes)
		r.Get("/announcements", a.handlePublicAnnouncements)
		r.Get("/album-art", a.handleAlbumArtLookup)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", a.handleLogin)
			r.Post("/logout", a.handleLogout)
			r.Get("/me", a.handleMe)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(a.adminLoginPath))

			r.Route("/request-logs", func(r chi.Router) {
				r.Get("/", a.handleRequestLogsList)
				r.Get("/{logID}", a.handleRequestLogGet)
				r.Get("/{logID}/voice", a.handleRequestLogVoice)
			})

			r.Route("/bans", func(r chi.Router) {
				r.Get("/", a.handleBansList)
				r.Post("/", a.handleBanCreate)
				r.Delete("/{banID}", a.handleBanDelete)
			})

			r.Route("/announcements", func(r chi.Router) {
				r.Get("/", a.handleAnnouncementsList)
				r.Post("/", a.handleAnnouncementCreate)
				r.Patch("/{announcementID}", a.handleAnnouncementUpdate)
				r.Post("/{announcementID}/toggle", a.handleAnnouncementToggle)
				r.Delete("/{announcementID}", a.handleAnnouncementDelete)
			})

			r.Route("/logs", func(r chi.Router) {
				r.Get("/", a.handleSystemLogs)
				r.Get("/components", a.handleSystemLogComponents)
				r.Get("/stats", a.handleSystemLogStats)
			})
		})
	})
}

func (a *API) limit(scope string) func(http.Handler) http.Handler {
	if a.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return a.limiter.Middleware(scope)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

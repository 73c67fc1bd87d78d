/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EnvPrefix is prepended to every environment key, e.g. RBC_DB_DSN.
const EnvPrefix = "RBC"

// Relay scopes that carry their own per-minute limits.
const (
	ScopeGetSchedule     = "get-schedule"
	ScopeGetPodcastAsset = "get-podcast-asset"
	ScopeAlbumArt        = "get-spotify-album-art"
	ScopeSearchSpotify   = "search-spotify"
	ScopeSendRequest     = "send-request"
	ScopeSetupAdmin      = "setup-admin"
)

// AdminSeed is an account that setup-admin creates with the admin role.
type AdminSeed struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Config covers process level configuration read from the environment and an optional file.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EventBus is one of memory, redis, nats.
	EventBus string
	NATSURL  string
	NodeID   string

	// LeaderElection restricts now-playing polling to one node per cluster.
	LeaderElection bool
	LeaderLease    time.Duration

	JWTSigningKey  string
	JWTTTL         time.Duration
	AdminLoginPath string

	// AzuraCast
	AzuraBaseURL     string
	StationShortcode string
	AzuraAPIKey      string

	// Metadata lookups
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyTokenURL     string
	SpotifyAPIBaseURL   string
	ITunesBaseURL       string

	DiscordWebhookURL string

	AdminSetupKey string
	AdminSeedFile string
	AdminSeeds    []AdminSeed

	PlaceholderArtURL string
	AlbumArtTTL       time.Duration

	NowPlayingInterval time.Duration
	NowPlayingHistory  int

	ScheduleWindowDays int
	ScheduleTimezone   string
	ScheduleCacheTTL   time.Duration
	ShowsCacheTTL      time.Duration

	// RateLimitBackend is memory or redis.
	RateLimitBackend string
	RateLimitWindow  time.Duration
	RateLimits       map[string]int

	// Voice memo archive: none, filesystem or s3.
	ObjectStorageBackend string
	VoiceMemoDir         string
	MaxVoiceSeconds      int
	MaxVoiceBytes        int64

	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string
	S3UsePathStyle    bool

	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LogBufferSize int

	LegacyEnvWarnings []string
}

// legacyKeys maps config keys to the unprefixed variables the old relay functions read.
var legacyKeys = map[string]string{
	"azura_api_key":         "AZURA_API_KEY",
	"spotify_client_id":     "SPOTIFY_CLIENT_ID",
	"spotify_client_secret": "SPOTIFY_CLIENT_SECRET",
	"discord_webhook_url":   "DISCORD_WEBHOOK_URL",
	"admin_setup_key":       "ADMIN_SETUP_KEY",
}

var defaultRateLimits = map[string]int{
	ScopeGetSchedule:     30,
	ScopeGetPodcastAsset: 60,
	ScopeAlbumArt:        60,
	ScopeSearchSpotify:   60,
	ScopeSendRequest:     10,
	ScopeSetupAdmin:      5,
}

// Load reads the environment, applies defaults, and validates the result.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvPrefix + "_CONFIG"))
}

// LoadFile is Load with an optional YAML config file underneath the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, legacy := range legacyKeys {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), legacy)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Environment: v.GetString("env"),
		HTTPBind:    v.GetString("http_bind"),
		HTTPPort:    v.GetInt("http_port"),
		DBBackend:   DatabaseBackend(strings.ToLower(v.GetString("db_backend"))),
		DBDSN:       v.GetString("db_dsn"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		EventBus: strings.ToLower(v.GetString("event_bus")),
		NATSURL:  v.GetString("nats_url"),
		NodeID:   v.GetString("node_id"),

		LeaderElection: v.GetBool("leader_election"),
		LeaderLease:    v.GetDuration("leader_lease"),

		JWTSigningKey:  v.GetString("jwt_signing_key"),
		JWTTTL:         v.GetDuration("jwt_ttl"),
		AdminLoginPath: v.GetString("admin_login_path"),

		AzuraBaseURL:     strings.TrimRight(v.GetString("azura_base_url"), "/"),
		StationShortcode: v.GetString("station_shortcode"),
		AzuraAPIKey:      v.GetString("azura_api_key"),

		SpotifyClientID:     v.GetString("spotify_client_id"),
		SpotifyClientSecret: v.GetString("spotify_client_secret"),
		SpotifyTokenURL:     v.GetString("spotify_token_url"),
		SpotifyAPIBaseURL:   strings.TrimRight(v.GetString("spotify_api_base_url"), "/"),
		ITunesBaseURL:       strings.TrimRight(v.GetString("itunes_base_url"), "/"),

		DiscordWebhookURL: v.GetString("discord_webhook_url"),

		AdminSetupKey: v.GetString("admin_setup_key"),
		AdminSeedFile: v.GetString("admin_seed_file"),

		PlaceholderArtURL: v.GetString("placeholder_art_url"),
		AlbumArtTTL:       v.GetDuration("album_art_ttl"),

		NowPlayingInterval: v.GetDuration("now_playing_interval"),
		NowPlayingHistory:  v.GetInt("now_playing_history"),

		ScheduleWindowDays: v.GetInt("schedule_window_days"),
		ScheduleTimezone:   v.GetString("schedule_timezone"),
		ScheduleCacheTTL:   v.GetDuration("schedule_cache_ttl"),
		ShowsCacheTTL:      v.GetDuration("shows_cache_ttl"),

		RateLimitBackend: strings.ToLower(v.GetString("rate_limit_backend")),
		RateLimitWindow:  v.GetDuration("rate_limit_window"),
		RateLimits:       make(map[string]int, len(defaultRateLimits)),

		ObjectStorageBackend: strings.ToLower(v.GetString("object_storage_backend")),
		VoiceMemoDir:         v.GetString("voice_memo_dir"),
		MaxVoiceSeconds:      v.GetInt("max_voice_seconds"),
		MaxVoiceBytes:        v.GetInt64("max_voice_bytes"),

		S3AccessKeyID:     v.GetString("s3_access_key_id"),
		S3SecretAccessKey: v.GetString("s3_secret_access_key"),
		S3Region:          v.GetString("s3_region"),
		S3Bucket:          v.GetString("s3_bucket"),
		S3Endpoint:        v.GetString("s3_endpoint"),
		S3UsePathStyle:    v.GetBool("s3_use_path_style"),

		TracingEnabled:    v.GetBool("tracing_enabled"),
		OTLPEndpoint:      v.GetString("otlp_endpoint"),
		TracingSampleRate: v.GetFloat64("tracing_sample_rate"),

		LogBufferSize: v.GetInt("log_buffer_size"),
	}

	for scope := range defaultRateLimits {
		cfg.RateLimits[scope] = v.GetInt(rateLimitKey(scope))
	}

	var errs []error

	seeds, err := loadAdminSeeds(cfg.AdminSeedFile, v.GetString("admin_seeds"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.AdminSeeds = seeds

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http_bind", "0.0.0.0")
	v.SetDefault("http_port", 8080)
	v.SetDefault("db_backend", string(DatabasePostgres))
	v.SetDefault("db_dsn", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("event_bus", "memory")
	v.SetDefault("nats_url", "nats://localhost:4222")
	v.SetDefault("node_id", "")
	v.SetDefault("leader_election", false)
	v.SetDefault("leader_lease", 15*time.Second)

	v.SetDefault("jwt_signing_key", "")
	v.SetDefault("jwt_ttl", 12*time.Hour)
	v.SetDefault("admin_login_path", "/admin")

	v.SetDefault("azura_base_url", "https://azura.rbctelevision.org")
	v.SetDefault("station_shortcode", "rbcradio")
	v.SetDefault("azura_api_key", "")

	v.SetDefault("spotify_client_id", "")
	v.SetDefault("spotify_client_secret", "")
	v.SetDefault("spotify_token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("spotify_api_base_url", "https://api.spotify.com/v1")
	v.SetDefault("itunes_base_url", "https://itunes.apple.com")

	v.SetDefault("discord_webhook_url", "")

	v.SetDefault("admin_setup_key", "")
	v.SetDefault("admin_seed_file", "")
	v.SetDefault("admin_seeds", "")

	v.SetDefault("placeholder_art_url", "https://azura.rbctelevision.org/static/uploads/album_art.1764542764.png")
	v.SetDefault("album_art_ttl", time.Hour)

	v.SetDefault("now_playing_interval", 10*time.Second)
	v.SetDefault("now_playing_history", 5)

	v.SetDefault("schedule_window_days", 10)
	v.SetDefault("schedule_timezone", "Local")
	v.SetDefault("schedule_cache_ttl", time.Minute)
	v.SetDefault("shows_cache_ttl", 5*time.Minute)

	v.SetDefault("rate_limit_backend", "memory")
	v.SetDefault("rate_limit_window", time.Minute)
	for scope, limit := range defaultRateLimits {
		v.SetDefault(rateLimitKey(scope), limit)
	}

	v.SetDefault("object_storage_backend", "none")
	v.SetDefault("voice_memo_dir", "./voice-memos")
	v.SetDefault("max_voice_seconds", 60)
	v.SetDefault("max_voice_bytes", 8<<20)

	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_use_path_style", false)

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing_sample_rate", 1.0)

	v.SetDefault("log_buffer_size", 5000)
}

func rateLimitKey(scope string) string {
	return "rate_limit_" + strings.ReplaceAll(scope, "-", "_")
}

func (c *Config) validate() []error {
	var errs []error

	switch c.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported database backend %q", c.DBBackend))
	}
	if c.DBDSN == "" {
		errs = append(errs, fmt.Errorf("RBC_DB_DSN must be provided"))
	}
	if c.JWTSigningKey == "" {
		errs = append(errs, fmt.Errorf("RBC_JWT_SIGNING_KEY must be provided"))
	}

	switch c.EventBus {
	case "memory", "redis", "nats":
	default:
		errs = append(errs, fmt.Errorf("unsupported event bus %q", c.EventBus))
	}
	if c.EventBus == "redis" && c.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("RBC_REDIS_ADDR is required when RBC_EVENT_BUS=redis"))
	}

	if c.LeaderElection {
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("RBC_REDIS_ADDR is required when RBC_LEADER_ELECTION is enabled"))
		}
		if c.EventBus == "memory" {
			errs = append(errs, fmt.Errorf("RBC_LEADER_ELECTION needs a shared RBC_EVENT_BUS (redis or nats)"))
		}
		if c.LeaderLease < 3*time.Second {
			errs = append(errs, fmt.Errorf("RBC_LEADER_LEASE must be at least 3s"))
		}
	}

	switch c.RateLimitBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("RBC_REDIS_ADDR is required when RBC_RATE_LIMIT_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported rate limit backend %q", c.RateLimitBackend))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RBC_RATE_LIMIT_WINDOW must be positive"))
	}

	switch c.ObjectStorageBackend {
	case "none", "filesystem":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("RBC_S3_BUCKET is required when RBC_OBJECT_STORAGE_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported object storage backend %q", c.ObjectStorageBackend))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("RBC_SCHEDULE_TIMEZONE: %w", err))
	}
	if c.ScheduleWindowDays <= 0 {
		errs = append(errs, fmt.Errorf("RBC_SCHEDULE_WINDOW_DAYS must be positive"))
	}
	if c.NowPlayingInterval <= 0 {
		errs = append(errs, fmt.Errorf("RBC_NOW_PLAYING_INTERVAL must be positive"))
	}

	if strings.EqualFold(c.Environment, "production") {
		if c.AdminSetupKey != "" && len(c.AdminSetupKey) < 16 {
			errs = append(errs, fmt.Errorf("RBC_ADMIN_SETUP_KEY must be at least 16 characters in production"))
		}
		if len(c.JWTSigningKey) < 32 {
			errs = append(errs, fmt.Errorf("RBC_JWT_SIGNING_KEY must be at least 32 characters in production"))
		}
	}

	return errs
}

// Location resolves ScheduleTimezone. "Local" and "" mean the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.ScheduleTimezone == "" || strings.EqualFold(c.ScheduleTimezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.ScheduleTimezone)
}

// RateLimit returns the per-window limit for a relay scope.
func (c *Config) RateLimit(scope string) int {
	if n, ok := c.RateLimits[scope]; ok && n > 0 {
		return n
	}
	return defaultRateLimits[scope]
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

type seedFile struct {
	Admins []AdminSeed `yaml:"admins"`
}

// loadAdminSeeds reads seeds from a YAML file, or from "email:password,email:password".
func loadAdminSeeds(path, inline string) ([]AdminSeed, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read admin seed file: %w", err)
		}
		var f seedFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse admin seed file: %w", err)
		}
		for i, s := range f.Admins {
			if strings.TrimSpace(s.Email) == "" || s.Password == "" {
				return nil, fmt.Errorf("admin seed %d: email and password are required", i)
			}
			f.Admins[i].Email = strings.ToLower(strings.TrimSpace(s.Email))
		}
		return f.Admins, nil
	}

	var seeds []AdminSeed
	for _, pair := range strings.Split(inline, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, password, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(email) == "" || password == "" {
			return nil, fmt.Errorf("RBC_ADMIN_SEEDS entry %q must be email:password", email)
		}
		seeds = append(seeds, AdminSeed{Email: strings.ToLower(strings.TrimSpace(email)), Password: password})
	}
	return seeds, nil
}

func detectLegacyEnvWarnings() []string {
	var warnings []string
	for key, legacy := range legacyKeys {
		if os.Getenv(legacy) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; use %s_%s", legacy, EnvPrefix, strings.ToUpper(key)))
		}
	}
	return warnings
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RBC_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("RBC_JWT_SIGNING_KEY", "supersecret")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("RBC_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StationShortcode != "rbcradio" {
		t.Fatalf("StationShortcode=%q, want rbcradio", cfg.StationShortcode)
	}
	if cfg.NowPlayingInterval != 10*time.Second {
		t.Fatalf("NowPlayingInterval=%v, want 10s", cfg.NowPlayingInterval)
	}
	if cfg.AlbumArtTTL != time.Hour {
		t.Fatalf("AlbumArtTTL=%v, want 1h", cfg.AlbumArtTTL)
	}
	if cfg.ScheduleWindowDays != 10 {
		t.Fatalf("ScheduleWindowDays=%d, want 10", cfg.ScheduleWindowDays)
	}
	if got := cfg.RateLimit(ScopeGetSchedule); got != 30 {
		t.Fatalf("get-schedule limit=%d, want 30", got)
	}
	if got := cfg.RateLimit(ScopeAlbumArt); got != 60 {
		t.Fatalf("album art limit=%d, want 60", got)
	}
	if cfg.MaxVoiceSeconds != 60 {
		t.Fatalf("MaxVoiceSeconds=%d, want 60", cfg.MaxVoiceSeconds)
	}
}

func TestLoadRateLimitOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("RBC_RATE_LIMIT_SEARCH_SPOTIFY", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := cfg.RateLimit(ScopeSearchSpotify); got != 5 {
		t.Fatalf("search-spotify limit=%d, want 5", got)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	setRequired(t)
	t.Setenv("AZURA_API_KEY", "legacy-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
	if cfg.AzuraAPIKey != "legacy-key" {
		t.Fatalf("AzuraAPIKey=%q, want legacy value to be honoured", cfg.AzuraAPIKey)
	}
}

func TestLoadPrefixedKeyWinsOverLegacy(t *testing.T) {
	setRequired(t)
	t.Setenv("AZURA_API_KEY", "legacy-key")
	t.Setenv("RBC_AZURA_API_KEY", "new-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AzuraAPIKey != "new-key" {
		t.Fatalf("AzuraAPIKey=%q, want new-key", cfg.AzuraAPIKey)
	}
}

func TestLoadRequiresDSNAndSigningKey(t *testing.T) {
	t.Setenv("RBC_DB_DSN", "")
	t.Setenv("RBC_JWT_SIGNING_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "RBC_DB_DSN") || !strings.Contains(err.Error(), "RBC_JWT_SIGNING_KEY") {
		t.Fatalf("expected both missing keys to be reported, got %v", err)
	}
}

func TestLoadProductionRequiresStrongSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("RBC_ENV", "production")
	t.Setenv("RBC_ADMIN_SETUP_KEY", "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with weak secrets")
	}

	t.Setenv("RBC_JWT_SIGNING_KEY", strings.Repeat("k", 32))
	t.Setenv("RBC_ADMIN_SETUP_KEY", strings.Repeat("s", 16))
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load to succeed: %v", err)
	}
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("RBC_SCHEDULE_TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown timezone to fail validation")
	}
}

func TestLoadAdminSeedsFromFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "admins.yml")
	body := "admins:\n  - email: Admin@Example.org\n    password: one\n  - email: tech@example.org\n    password: two\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	t.Setenv("RBC_ADMIN_SEED_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.AdminSeeds) != 2 {
		t.Fatalf("len(AdminSeeds)=%d, want 2", len(cfg.AdminSeeds))
	}
	if cfg.AdminSeeds[0].Email != "admin@example.org" {
		t.Fatalf("email=%q, want lowercased admin@example.org", cfg.AdminSeeds[0].Email)
	}
}

func TestLoadAdminSeedsInline(t *testing.T) {
	setRequired(t)
	t.Setenv("RBC_ADMIN_SEEDS", "a@example.org:pw1, b@example.org:pw:2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.AdminSeeds) != 2 {
		t.Fatalf("len(AdminSeeds)=%d, want 2", len(cfg.AdminSeeds))
	}
	if cfg.AdminSeeds[1].Password != "pw:2" {
		t.Fatalf("password=%q, want pw:2", cfg.AdminSeeds[1].Password)
	}
}

func TestLoadFileUnderEnvironment(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "rbcradio.yml")
	body := "station_shortcode: otherstation\nhttp_port: 9090\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RBC_HTTP_PORT", "7070")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StationShortcode != "otherstation" {
		t.Fatalf("StationShortcode=%q, want otherstation", cfg.StationShortcode)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("HTTPPort=%d, want env override 7070", cfg.HTTPPort)
	}
}

func TestLoadLeaderElectionNeedsSharedBus(t *testing.T) {
	setRequired(t)
	t.Setenv("RBC_LEADER_ELECTION", "true")

	_, err := Load()
	if err == nil {
		t.Fatal("expected leader election without redis to fail")
	}
	if !strings.Contains(err.Error(), "RBC_REDIS_ADDR") || !strings.Contains(err.Error(), "RBC_EVENT_BUS") {
		t.Fatalf("err=%v", err)
	}

	t.Setenv("RBC_REDIS_ADDR", "localhost:6379")
	t.Setenv("RBC_EVENT_BUS", "redis")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.LeaderElection || cfg.LeaderLease != 15*time.Second {
		t.Fatalf("LeaderElection=%v LeaderLease=%s", cfg.LeaderElection, cfg.LeaderLease)
	}
}

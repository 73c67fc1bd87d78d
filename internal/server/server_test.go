package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/rbctelevision/rbcradio/internal/config"
	"github.com/rbctelevision/rbcradio/internal/logbuffer"
)

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	azura := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(azura.Close)

	t.Setenv("RBC_DB_BACKEND", "sqlite")
	t.Setenv("RBC_DB_DSN", ":memory:")
	t.Setenv("RBC_JWT_SIGNING_KEY", "server-test-secret")
	t.Setenv("RBC_AZURA_BASE_URL", azura.URL)
	t.Setenv("RBC_SCHEDULE_TIMEZONE", "UTC")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	srv, err := New(cfg, logbuffer.New(100), zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestServerHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil || health["status"] != "ok" {
		t.Fatalf("healthz body=%s err=%v", rr.Body.String(), err)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("security headers missing")
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "rbcradio_http_requests_total") {
		t.Fatalf("metrics status=%d", rr.Code)
	}
}

func TestServerSendRequestWithoutWebhook(t *testing.T) {
	srv := newTestServer(t, nil)

	body := []byte(`{"type":"message","name":"Sam","message":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/send-request", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s, want 500 without a webhook", rr.Code, rr.Body.String())
	}
}

func TestServerSharedBackendsOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := newTestServer(t, map[string]string{
		"RBC_REDIS_ADDR":             mr.Addr(),
		"RBC_EVENT_BUS":              "redis",
		"RBC_RATE_LIMIT_BACKEND":     "redis",
		"RBC_RATE_LIMIT_SETUP_ADMIN": "1",
		"RBC_LEADER_ELECTION":        "true",
	})
	if srv.redisBus == nil || srv.memLimits != nil || srv.election == nil {
		t.Fatalf("expected redis event bus, redis rate limit store and leader election")
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if _, ok := health["leader"]; !ok {
		t.Fatalf("healthz missing leader: %v", health)
	}

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/functions/v1/setup-admin", strings.NewReader(`{"setupKey":"nope"}`))
		req.RemoteAddr = "203.0.113.50:1234"
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		return rr.Code
	}
	if got := post(); got != http.StatusUnauthorized {
		t.Fatalf("first setup-admin status=%d, want 401", got)
	}
	if got := post(); got != http.StatusTooManyRequests {
		t.Fatalf("second setup-admin status=%d, want 429", got)
	}
}

func TestServerRejectsUnknownBackends(t *testing.T) {
	t.Setenv("RBC_DB_BACKEND", "sqlite")
	t.Setenv("RBC_DB_DSN", ":memory:")
	t.Setenv("RBC_JWT_SIGNING_KEY", "server-test-secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.EventBus = "kafka"
	if _, err := New(cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected an unknown event bus to fail")
	}
}

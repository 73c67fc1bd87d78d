package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(store Store, limit int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	l := New(store, time.Minute, map[string]int{"get-schedule": limit}, zerolog.Nop(), WithClock(clock.Now))
	return l, clock
}

func TestLimiterRejectsNPlusOneThenRecoversNextWindow(t *testing.T) {
	const limit = 30
	l, clock := newTestLimiter(NewMemoryStore(), limit)
	ctx := context.Background()

	for i := 1; i <= limit; i++ {
		d := l.Allow(ctx, "get-schedule", "203.0.113.1")
		if !d.Allowed {
			t.Fatalf("request %d rejected, want allowed", i)
		}
		if d.Remaining != limit-i {
			t.Fatalf("request %d remaining=%d, want %d", i, d.Remaining, limit-i)
		}
	}

	d := l.Allow(ctx, "get-schedule", "203.0.113.1")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("request %d: allowed=%v remaining=%d, want rejected with 0", limit+1, d.Allowed, d.Remaining)
	}

	// The window end itself still belongs to the old window.
	clock.Advance(time.Minute)
	if d := l.Allow(ctx, "get-schedule", "203.0.113.1"); d.Allowed {
		t.Fatal("request at exact reset time should still be limited")
	}

	clock.Advance(time.Millisecond)
	d = l.Allow(ctx, "get-schedule", "203.0.113.1")
	if !d.Allowed || d.Remaining != limit-1 {
		t.Fatalf("next window: allowed=%v remaining=%d, want allowed with %d", d.Allowed, d.Remaining, limit-1)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore(), 1)
	ctx := context.Background()

	if !l.Allow(ctx, "get-schedule", "a").Allowed {
		t.Fatal("first request from a should pass")
	}
	if l.Allow(ctx, "get-schedule", "a").Allowed {
		t.Fatal("second request from a should be limited")
	}
	if !l.Allow(ctx, "get-schedule", "b").Allowed {
		t.Fatal("client b has its own window")
	}
	if !l.Allow(ctx, "search-spotify", "a").Allowed {
		t.Fatal("unconfigured scope should be unlimited")
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("boom")
}

func TestLimiterFailsOpen(t *testing.T) {
	l, _ := newTestLimiter(failingStore{}, 1)
	for i := 0; i < 3; i++ {
		if !l.Allow(context.Background(), "get-schedule", "a").Allowed {
			t.Fatal("store failure should allow the request")
		}
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, _ = s.Hit(context.Background(), "k", now, time.Minute)

	if n := s.Sweep(now.Add(30 * time.Second)); n != 0 {
		t.Fatalf("swept %d live windows", n)
	}
	if n := s.Sweep(now.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
}

func TestRedisStoreWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l, _ := newTestLimiter(NewRedisStore(client), 2)
	ctx := context.Background()

	if !l.Allow(ctx, "get-schedule", "ip").Allowed || !l.Allow(ctx, "get-schedule", "ip").Allowed {
		t.Fatal("first two requests should pass")
	}
	if d := l.Allow(ctx, "get-schedule", "ip"); d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request: %+v, want rejected", d)
	}

	mr.FastForward(time.Minute + time.Second)
	if d := l.Allow(ctx, "get-schedule", "ip"); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("after window: %+v, want allowed with 1 remaining", d)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "10.0.0.1:1234", "198.51.100.4"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.5"}, "10.0.0.1:1234", "198.51.100.5"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"unknown", nil, "", "unknown"},
		{"garbage forwarded falls back to remote", map[string]string{"X-Forwarded-For": "not-an-ip" + strings.Repeat("x", 80)}, "192.0.2.9:5555", "192.0.2.9"},
		{"garbage forwarded falls back to real ip", map[string]string{"X-Forwarded-For": "evil, 198.51.100.4", "X-Real-IP": "198.51.100.5"}, "10.0.0.1:1234", "198.51.100.5"},
		{"garbage real ip", map[string]string{"X-Real-IP": "<script>"}, "192.0.2.9:5555", "192.0.2.9"},
		{"ipv6 canonicalised", map[string]string{"X-Forwarded-For": "2001:DB8::0001"}, "10.0.0.1:1234", "2001:db8::1"},
		{"bare remote addr", nil, "192.0.2.10", "192.0.2.10"},
		{"unparseable remote addr", nil, "somewhere", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Fatalf("ClientIP=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddlewareWrites429(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore(), 1)
	h := l.Middleware("get-schedule")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/functions/v1/get-schedule", strings.NewReader("{}"))
		r.Header.Set("X-Forwarded-For", "203.0.113.50")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr
	}

	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d, want 200", rr.Code)
	}

	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d, want 429", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining=%q, want 0", got)
	}
	if !strings.Contains(rr.Body.String(), ExceededMessage) {
		t.Fatalf("body=%q, want rate limit message", rr.Body.String())
	}

	// Preflights pass through without consuming budget.
	r := httptest.NewRequest(http.MethodOptions, "/functions/v1/get-schedule", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("OPTIONS status=%d, want 200", rec.Code)
	}
}

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		method   string
		path     string
		viaHTTPS bool
		wantHSTS string
	}{
		{name: "listener api over http", method: http.MethodGet, path: "/api/v1/schedule"},
		{name: "relay function over http", method: http.MethodPost, path: "/functions/v1/send-request"},
		{name: "admin over https proxy", method: http.MethodGet, path: "/api/v1/admin/bans", viaHTTPS: true,
			wantHSTS: "max-age=31536000; includeSubDomains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.viaHTTPS {
				req.Header.Set("X-Forwarded-Proto", "https")
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Fatalf("X-Content-Type-Options=%q, want nosniff", got)
			}
			if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
				t.Fatalf("X-Frame-Options=%q, want DENY", got)
			}
			if got := rr.Header().Get("Referrer-Policy"); got != "strict-origin-when-cross-origin" {
				t.Fatalf("Referrer-Policy=%q", got)
			}
			if got := rr.Header().Get("Content-Security-Policy"); !strings.Contains(got, "frame-ancestors 'none'") {
				t.Fatalf("Content-Security-Policy=%q, want frame-ancestors 'none'", got)
			}
			if got := rr.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Fatalf("Strict-Transport-Security=%q, want %q", got, tt.wantHSTS)
			}
		})
	}
}

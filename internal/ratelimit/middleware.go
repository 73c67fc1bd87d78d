/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rbctelevision/rbcradio/internal/telemetry"
)

// ExceededMessage is the body text of a 429.
const ExceededMessage = "Rate limit exceeded. Please try again in a minute."

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// RemoteAddr host, and "unknown" when none is present. Only values that parse
// as an IP are used; anything else falls through to the next source, so a
// forged header cannot become an arbitrary limiter or ban key.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip := parseIP(host); ip != "" {
		return ip
	}
	return "unknown"
}

// parseIP returns the canonical form of s, or "" when it is not an address.
func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// Middleware enforces the scope's limit per client IP. OPTIONS preflights are not counted.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			d := l.Allow(r.Context(), scope, ip)
			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}

			if !d.Allowed {
				telemetry.RateLimitRejections.WithLabelValues(scope).Inc()
				l.logger.Info().Str("scope", scope).Str("ip", ip).Msg("rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": ExceededMessage})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

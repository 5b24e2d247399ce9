// Package middleware carries the HTTP cross-cutting layers: request logging,
// CORS, and per-client rate limiting on the analysis endpoint.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-client cap on analysis submissions. Every
// analysis can fan out to paid upstreams, so ingress is throttled before any
// tool spend happens.
//
// Fixed one-minute windows per key; expired windows are garbage-collected
// periodically.
type RateLimiter struct {
	mu      sync.RWMutex
	windows map[string]*rateLimitWindow
	cfg     RateLimitConfig
}

// RateLimitConfig defines the throttling thresholds.
type RateLimitConfig struct {
	MaxCallsPerMinute int
	BurstSize         int // temporary headroom above the per-minute cap
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxCallsPerMinute <= 0 {
		cfg.MaxCallsPerMinute = 30
	}
	if cfg.BurstSize < cfg.MaxCallsPerMinute {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}
	rl := &RateLimiter{
		windows: make(map[string]*rateLimitWindow),
		cfg:     cfg,
	}
	go rl.cleanup()
	return rl
}

// Allow records one call for key and reports whether it is within limits.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.RLock()
	window, exists := rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		rl.mu.RUnlock()

		rl.mu.Lock()
		defer rl.mu.Unlock()
		window.count++
		if window.count > rl.cfg.MaxCallsPerMinute {
			if window.count > rl.cfg.BurstSize {
				slog.Warn("[RateLimit] Client throttled", "key", key, "count", window.count)
				return false
			}
		}
		return true
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	// Re-check: another goroutine may have rolled the window already.
	window, exists = rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		return window.count <= rl.cfg.BurstSize
	}
	rl.windows[key] = &rateLimitWindow{count: 1, windowStart: now}
	return true
}

// Middleware throttles by client IP, honoring X-Forwarded-For when present.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after_seconds":60}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, window := range rl.windows {
			if now.Sub(window.windowStart) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

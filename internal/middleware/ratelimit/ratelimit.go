// Package ratelimit provides per-client-IP request throttling with a fixed
// counting window.
package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults for a small family-facing API.
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

func (c Config) withFallbacks() Config {
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	return c
}

// visitor tracks one client IP's current counting window.
type visitor struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// Limiter throttles requests per client IP. Stop must be called to release
// the cleanup goroutine.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      Config

	totalHits int64

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewLimiter creates a rate limiter and starts its cleanup goroutine.
func NewLimiter(cfg Config) *Limiter {
	rl := &Limiter{
		visitors:    make(map[string]*visitor),
		cfg:         cfg.withFallbacks(),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from clientIP fits in its current window.
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[clientIP]
	if !ok || now.Sub(v.windowStart) >= rl.cfg.Window {
		rl.visitors[clientIP] = &visitor{windowStart: now, count: 1, lastSeen: now}
		return true
	}

	v.count++
	v.lastSeen = now
	if v.count > rl.cfg.RequestsPerWindow {
		atomic.AddInt64(&rl.totalHits, 1)
		return false
	}
	return true
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropIdleVisitors()
		case <-rl.stopCleanup:
			return
		}
	}
}

// dropIdleVisitors forgets clients that have been quiet for ten windows.
func (rl *Limiter) dropIdleVisitors() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * rl.cfg.Window)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// Stop terminates the cleanup goroutine.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit behavior
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clientCount := int64(len(rl.visitors))
	rl.mu.Unlock()

	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.totalHits),
		ClientCount: clientCount,
	}
}

// Middleware creates HTTP middleware that rejects over-limit requests with
// 429. A custom onLimit handler overrides the default response.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

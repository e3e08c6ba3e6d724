// Package ratelimit limits state changing requests per client.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/log"
)

// Limiter is a fixed window counter per client key.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo

	requestsPerMinute int
	window            time.Duration
	staleAfter        time.Duration
	now               func() time.Time

	hits   atomic.Int64
	logger *log.Logger
}

type clientInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

type Config struct {
	RequestsPerMinute int
	// Methods are the limited methods; empty limits POST, PUT, PATCH and DELETE.
	Methods []string
}

func NewLimiter(cfg Config, logger *log.Logger) *Limiter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Limiter{
		clients:           make(map[string]*clientInfo),
		requestsPerMinute: cfg.RequestsPerMinute,
		window:            time.Minute,
		staleAfter:        10 * time.Minute,
		now:               time.Now,
		logger:            logger.WithComponent(log.ComponentRateLimit),
	}
}

// Enabled is false when the limit is zero or negative.
func (rl *Limiter) Enabled() bool { return rl != nil && rl.requestsPerMinute > 0 }

// Allow counts one request from key and reports whether it is within the
// limit.
func (rl *Limiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[key]
	if !ok || now.Sub(c.windowStart) >= rl.window {
		rl.clients[key] = &clientInfo{windowStart: now, lastRequest: now, requests: 1}
		return true
	}
	c.requests++
	c.lastRequest = now
	if c.requests > rl.requestsPerMinute {
		rl.hits.Add(1)
		return false
	}
	return true
}

// Sweep drops clients idle for longer than ten minutes. It matches the
// worker sweep signature so it can run on the shared sweeper.
func (rl *Limiter) Sweep(context.Context) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.staleAfter)
	removed := 0
	for key, c := range rl.clients {
		if c.lastRequest.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed, nil
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Hits is the number of rejected requests since start.
func (rl *Limiter) Hits() int64 { return rl.hits.Load() }

// Middleware rejects limited methods over the limit with 429. Other
// methods pass untouched.
func (rl *Limiter) Middleware(cfg Config, clientKey func(*http.Request) string) func(http.Handler) http.Handler {
	methods := cfg.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	}
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limited[r.Method] && !rl.Allow(clientKey(r)) {
				rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady runs every readiness check with a shared deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.views == nil || len(s.views.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}
	for _, c := range s.checks {
		if err := c.Fn(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	if s.store != nil {
		checks["store"] = map[string]any{"entries": s.store.Stats().Entries, "status": "ok"}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	tm := s.tracer.GetMetrics()
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_microseconds", "gauge", "Mean response time", tm.AverageResponseTime)

	if s.store != nil {
		st := s.store.Stats()
		metric("store_hits_total", "counter", "Shared store cache hits", st.Hits)
		metric("store_misses_total", "counter", "Shared store cache misses", st.Misses)
		metric("store_invalidations_total", "counter", "Shared store invalidations", st.Invalidations)
		metric("store_entries", "gauge", "Cached collections", st.Entries)
		metric("store_evictions_total", "counter", "Collections evicted by the size bound", st.Evictions)
	}

	dm := s.detector.GetMetrics()
	metric("suspicious_requests_total", "counter", "Requests flagged as probes", dm.SuspiciousRequests)
	metric("invalid_forwarded_addresses_total", "counter", "Unparseable forwarding headers from trusted proxies", dm.InvalidProxies)

	if s.limiter.Enabled() {
		metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", s.limiter.Hits())
		metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", s.limiter.ActiveClients())
	}

	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

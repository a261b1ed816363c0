package server

import (
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves the Kubernetes liveness and readiness endpoints.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
}

// NewHealthChecker creates a HealthChecker that starts out ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive pushes.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// A nil server context never shuts down.
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	LastRun *RunInfo `json:"last_run,omitempty"`
}

// RegisterHealthEndpoints registers the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers 200 while the process is running.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 once the server is draining.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: healthStatusOK,
			Checks: map[string]string{
				"ready":    healthStatusOK,
				"shutdown": healthStatusOK,
			},
		}
		code := http.StatusOK

		if !h.ready.Load() {
			resp.Checks["ready"] = healthStatusNotReady
			resp.Status, code = healthStatusNotReady, http.StatusServiceUnavailable
		}
		if h.isServerShuttingDown() {
			resp.Checks["shutdown"] = healthStatusShuttingDown
			resp.Status, code = healthStatusNotReady, http.StatusServiceUnavailable
		}

		writeJSON(w, code, resp)
	})
}

// DetailedHealthHandler reports uptime and the outcome of the last pipeline run.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.serverContext != nil {
			resp.LastRun = h.serverContext.LastRun()
		}

		code := http.StatusOK
		switch {
		case !h.ready.Load():
			resp.Status, code = healthStatusNotReady, http.StatusServiceUnavailable
		case h.isServerShuttingDown():
			resp.Status, code = healthStatusShuttingDown, http.StatusServiceUnavailable
		}

		writeJSON(w, code, resp)
	})
}

package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks.
// Readiness follows the simulation: ready while a run is in progress or has
// finished cleanly, not ready before start and after an abort.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
	phase     atomic.Value // string
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	h := &HealthChecker{
		startTime: time.Now(),
	}
	h.phase.Store("starting")
	return h
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetPhase records the current simulation phase reported by both probes.
func (h *HealthChecker) SetPhase(phase string) {
	h.phase.Store(phase)
}

// Phase returns the last recorded phase.
func (h *HealthChecker) Phase() string {
	p, _ := h.phase.Load().(string)
	return p
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
			Phase:  h.Phase(),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready, 503 Service Unavailable if not.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			resp := HealthResponse{
				Status:  "not_ready",
				Phase:   h.Phase(),
				Message: "simulation is " + h.Phase(),
			}
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		resp := HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
			Phase:  h.Phase(),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

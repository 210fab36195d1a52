// Package handlers implements the admin API endpoints.
package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goclaw/dispatch/pkg/api/response"
	"github.com/goclaw/dispatch/pkg/dispatch"
	"github.com/goclaw/dispatch/pkg/version"
)

// HealthHandler serves the probe and status endpoints.
type HealthHandler struct {
	hub     *dispatch.Hub
	ready   atomic.Bool
	started time.Time
}

// NewHealthHandler creates a health handler. It reports not ready until
// SetReady(true) is called.
func NewHealthHandler(hub *dispatch.Hub) *HealthHandler {
	return &HealthHandler{hub: hub, started: time.Now()}
}

// SetReady flips the readiness probe.
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Health handles /healthz. The process answering is the liveness signal.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles /readyz.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// StatusResponse is the body of /status.
type StatusResponse struct {
	Build   version.BuildInfo `json:"build"`
	Uptime  string            `json:"uptime"`
	Ready   bool              `json:"ready"`
	Signals int               `json:"signals"`
}

// Status handles /status.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, StatusResponse{
		Build:   version.Get(),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Ready:   h.ready.Load(),
		Signals: len(h.hub.Names()),
	})
}

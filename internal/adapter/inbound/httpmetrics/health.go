package httpmetrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/vecmcp/mcpserver/internal/domain/outbound"
	"github.com/vecmcp/mcpserver/internal/domain/session"
)

// HealthResponse is the JSON body returned by the health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker reports liveness for the session manager and outbound
// request registry. Pass nil for a component not wired on a given
// transport (e.g. stdio has no outbound registry backpressure to watch).
type HealthChecker struct {
	sessions *session.Manager
	outbound *outbound.Registry
	version  string
}

// NewHealthChecker builds a HealthChecker.
func NewHealthChecker(sessions *session.Manager, outboundReg *outbound.Registry, version string) *HealthChecker {
	return &HealthChecker{sessions: sessions, outbound: outboundReg, version: version}
}

// Check runs all configured component checks.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.sessions != nil {
		checks["sessions"] = fmt.Sprintf("ok: %d active", h.sessions.Count())
	} else {
		checks["sessions"] = "not configured"
	}

	if h.outbound != nil {
		checks["outbound_registry"] = fmt.Sprintf("ok: %d pending", h.outbound.Pending())
	} else {
		checks["outbound_registry"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{Status: "healthy", Checks: checks, Version: h.version}
}

// Handler returns the /health HTTP handler.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(health)
	})
}

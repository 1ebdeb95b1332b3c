package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves the service banner and health check
type SystemHandler struct {
	service string
	version string
	checks  map[string]Pinger
	timeout time.Duration
}

// NewSystemHandler creates a handler checking every named dependency on /health
func NewSystemHandler(service, version string, checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		service: service,
		version: version,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// Root lists the service endpoints
// GET /
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": h.service,
		"version": h.version,
		"endpoints": []string{
			"POST /api/index/build",
			"GET /api/index/performance",
			"GET /api/index/composition",
			"GET /api/index/changes",
			"POST /api/index/export",
			"POST /api/data/acquire",
			"GET /health",
			"GET /ws",
		},
	})
}

// Health reports "ok" when every dependency answers, else 503 "degraded"
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      h.service,
		"dependencies": deps,
	})
}

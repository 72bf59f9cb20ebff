package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness
type HealthHandler struct {
	version string
	db      HealthChecker
}

// NewHealthHandler creates a health handler. db may be nil when no database is used.
func NewHealthHandler(version string, db HealthChecker) *HealthHandler {
	return &HealthHandler{version: version, db: db}
}

// Health reports service status
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":  "healthy",
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			resp["status"] = "unhealthy"
			resp["database"] = "unreachable"
			respondWithJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}

	respondWithJSON(w, http.StatusOK, resp)
}

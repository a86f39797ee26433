package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    Pinger
	model   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. model may be nil when the
// provider offers no probe.
func NewHealthHandler(repo Pinger, model Pinger) *HealthHandler {
	return &HealthHandler{repo: repo, model: model, timeout: defaultHealthCheckTimeout}
}

// Health returns the health status of the API and its dependencies.
// The database is required; an unreachable model only degrades the status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.model != nil {
		if err := h.model.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", "model", "error", err)
			status["status"] = "degraded"
			checks["model"] = "unreachable"
		} else {
			checks["model"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"alkalytics/internal/services"
)

// HealthHandler exposes the health probes and build information.
type HealthHandler struct {
	service HealthService
	logger  *slog.Logger
}

func NewHealthHandler(service HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, h.service.HealthCheck)
}

// ReadinessCheck handles GET /api/health/ready
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, h.service.ReadinessCheck)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	h.probe(w, r, h.service.LivenessCheck)
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}

// probe renders a health status. Not ready answers 503 so load balancers
// stop routing to the instance.
func (h *HealthHandler) probe(w http.ResponseWriter, r *http.Request, check func(context.Context) services.HealthStatus) {
	status := check(r.Context())
	if status.Status == services.StatusNotReady {
		h.logger.WarnContext(r.Context(), "Readiness check failed", slog.Any("services", status.Services))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

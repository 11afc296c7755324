package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/middleware"
	api "alkalytics/pkg/contracts/api/v1"
)

// EfficiencyHandler handles efficiency calculation requests
type EfficiencyHandler struct {
	service      EfficiencyService
	validator    *middleware.RequestValidator
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewEfficiencyHandler creates a new efficiency handler
func NewEfficiencyHandler(service EfficiencyService, validator *middleware.RequestValidator, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *EfficiencyHandler {
	return &EfficiencyHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "efficiency_handler")),
		errorHandler: errorHandler,
	}
}

// Calculate handles POST /api/calculate-efficiencies
func (h *EfficiencyHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req api.CalculateEfficienciesRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Calculate(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// List handles GET /api/efficiencies
func (h *EfficiencyHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/infrastructure"
	"alkalytics/internal/middleware"
	api "alkalytics/pkg/contracts/api/v1"
)

// ClientLogHandler handles client-side logging requests
type ClientLogHandler struct {
	validator    *middleware.RequestValidator
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(validator *middleware.RequestValidator, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *ClientLogHandler {
	return &ClientLogHandler{
		validator:    validator,
		logger:       logger.With(slog.String("handler", "client_log")),
		errorHandler: errorHandler,
	}
}

// Handle processes POST /api/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req api.ClientLogRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	attrs := []slog.Attr{slog.String("client_source", req.Source)}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}
	level := infrastructure.ParseLogLevel(req.Level)
	h.logger.LogAttrs(r.Context(), level, req.Message, attrs...)

	render.JSON(w, r, map[string]any{"success": true})
}

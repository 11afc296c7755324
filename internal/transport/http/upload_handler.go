package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "alkalytics/internal/errors"
	"alkalytics/internal/middleware"
	api "alkalytics/pkg/contracts/api/v1"
)

// UploadHandler handles spreadsheet uploads
type UploadHandler struct {
	service      UploadService
	validator    *middleware.RequestValidator
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service UploadService, validator *middleware.RequestValidator, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *UploadHandler {
	return &UploadHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "upload_handler")),
		errorHandler: errorHandler,
	}
}

// Upload handles POST /api/upload. The batch runs to completion even when
// the client disconnects, so a run is never cut off between two sheets.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req api.UploadRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Upload received",
		slog.Int("experiment_files", len(req.ExperimentFiles)),
		slog.Int("data_files", len(req.DataFiles)))

	resp, err := h.service.Upload(context.WithoutCancel(r.Context()), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// ManualUpload handles POST /api/manual-upload
func (h *UploadHandler) ManualUpload(w http.ResponseWriter, r *http.Request) {
	var req api.ManualUploadRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.ManualUpload(context.WithoutCancel(r.Context()), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

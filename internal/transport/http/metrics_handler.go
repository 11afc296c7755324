package http

import (
	"net/http"

	apperrors "alkalytics/internal/errors"
)

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct {
	exporter     http.Handler
	errorHandler *apperrors.ErrorHandler
}

// NewMetricsHandler wraps the exporter's handler. A nil exporter means
// metrics are disabled and the endpoint answers 404.
func NewMetricsHandler(exporter http.Handler, errorHandler *apperrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.errorHandler.HandleError(w, r, apperrors.NotFoundError("metrics"))
		return
	}
	h.exporter.ServeHTTP(w, r)
}

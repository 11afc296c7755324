package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Request level error codes, reported in the error_code problem field.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNoFiles          = "NO_FILES"
	CodeNotFound         = "NOT_FOUND"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

// APIError is a failure of the request itself rather than of the work it
// asked for. It always maps to a fixed status.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	ErrNoFiles           = &APIError{Status: http.StatusBadRequest, Code: CodeNoFiles, Message: "No files were provided"}
	ErrPayloadTooLarge   = &APIError{Status: http.StatusRequestEntityTooLarge, Code: CodePayloadTooLarge, Message: "Request body too large"}
	ErrRateLimitExceeded = &APIError{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: "Rate limit exceeded"}
)

// InvalidRequestWithError reports a body that could not be decoded.
func InvalidRequestWithError(err error) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidRequest,
		Message: "Invalid request format",
		Details: err.Error(),
	}
}

// NotFoundError reports a route level resource that does not exist, such as
// a disabled endpoint. Missing domain objects use NewNotFoundError.
func NotFoundError(resource string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: resource,
	}
}

// NewValidationErrors reports the fields that failed struct validation.
func NewValidationErrors(errs []ValidationError) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeValidationFailed,
		Message: "Request validation failed",
		Details: errs,
	}
}

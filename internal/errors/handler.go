package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs
const (
	TypeValidation         = "/errors/validation"
	TypeNotFound           = "/errors/not-found"
	TypeMethodNotAllowed   = "/errors/method-not-allowed"
	TypeRateLimit          = "/errors/rate-limit"
	TypeInternal           = "/errors/internal"
	TypeTimeout            = "/errors/timeout"
	TypePayloadTooLarge    = "/errors/payload-too-large"
	TypeSpreadsheetInvalid = "/errors/spreadsheet/invalid"
	TypeStorageFailure     = "/errors/storage/failure"
	TypeComputation        = "/errors/efficiency/computation"
	TypeConfiguration      = "/errors/configuration"
)

type problemKind struct {
	status    int
	uri       string
	title     string
	withCause bool // detail carries the wrapped cause
}

var appErrorKinds = map[ErrorType]problemKind{
	ErrTypeValidation:  {http.StatusBadRequest, TypeValidation, "Validation Failed", false},
	ErrTypeNotFound:    {http.StatusNotFound, TypeNotFound, "Resource Not Found", false},
	ErrTypeParsing:     {http.StatusUnprocessableEntity, TypeSpreadsheetInvalid, "Spreadsheet Could Not Be Read", true},
	ErrTypeComputation: {http.StatusUnprocessableEntity, TypeComputation, "Computation Failed", true},
	ErrTypeStorage:     {http.StatusServiceUnavailable, TypeStorageFailure, "Storage Unavailable", false},
	ErrTypeConfig:      {http.StatusInternalServerError, TypeConfiguration, "Configuration Error", false},
}

var apiErrorTypes = map[string]string{
	CodeInvalidRequest:   TypeValidation,
	CodeValidationFailed: TypeValidation,
	CodeNoFiles:          TypeValidation,
	CodeNotFound:         TypeNotFound,
	CodePayloadTooLarge:  TypePayloadTooLarge,
	CodeRateLimited:      TypeRateLimit,
}

// ErrorHandler writes every failed request as RFC 7807 problem details and
// logs it once.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack adds goroutine
// stacks to responses and belongs to development builds only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError responds with the problem for err. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r).WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
	}
	_ = render.Render(w, r, problem)
}

// ErrorToProblem maps err onto problem details. AppError and APIError carry
// their own classification; anything else is an internal error unless it is
// a timeout, an oversized body or reads as a miss.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		uri, ok := apiErrorTypes[apiErr.Code]
		if !ok {
			uri = TypeInternal
		}
		problem := NewProblemDetails(apiErr.Status, uri, http.StatusText(apiErr.Status), apiErr.Message, path).
			WithExtension("error_code", apiErr.Code)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		kind, ok := appErrorKinds[appErr.Type]
		if !ok {
			kind = problemKind{http.StatusInternalServerError, TypeInternal, "Internal Server Error", false}
		}
		detail := appErr.Message
		if kind.withCause {
			detail = appErr.Error()
		}
		problem := NewProblemDetails(kind.status, kind.uri, kind.title, detail, path).
			WithExtension("error_code", string(appErr.Type))
		if len(appErr.Context) > 0 {
			problem.WithExtension("context", appErr.Context)
		}
		return problem
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", path)
	case errors.As(err, &maxBytesErr):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			fmt.Sprintf("The request body exceeds the limit of %d bytes", maxBytesErr.Limit), path)
	case strings.Contains(err.Error(), "not found"):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Resource Not Found", err.Error(), path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", path)
}

// HandlePanic answers a recovered panic with a 500 problem.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	reqID := middleware.GetReqID(r.Context())
	stack := stackTrace()

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", stack),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred", r.URL.Path).WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
		problem.WithExtension("stack", stack)
	}
	_ = render.Render(w, r, problem)
}

// NotFound is the router's unknown-route handler
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.route(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed is the router's wrong-method handler
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.route(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

func (h *ErrorHandler) route(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	_ = render.Render(w, r, problem)
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}

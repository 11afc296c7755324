package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies an AppError. Each type maps to one HTTP status.
type ErrorType string

const (
	ErrTypeParsing     ErrorType = "PARSING"     // a spreadsheet could not be read
	ErrTypeStorage     ErrorType = "STORAGE"     // the document store failed
	ErrTypeValidation  ErrorType = "VALIDATION"  // arguments are unusable
	ErrTypeNotFound    ErrorType = "NOT_FOUND"   // an experiment or its data is missing
	ErrTypeConfig      ErrorType = "CONFIG"      // startup configuration is wrong
	ErrTypeComputation ErrorType = "COMPUTATION" // a numeric routine rejected its input
)

// AppError is a domain failure raised below the transport layer.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key reported in the problem's context field.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewAppError creates an AppError of any type
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationErr creates a VALIDATION error. Request body validation
// failures are APIErrors instead, see NewValidationErrors.
func NewValidationErr(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError reports that resource does not exist
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

func NewComputationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeComputation, message, cause)
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// TypeOf returns the type of the AppError wrapped by err, or "" if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

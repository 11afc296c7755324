package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "alkalytics/internal/errors"
)

// RequestValidator decodes JSON request bodies and validates them against
// their struct tags.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator registers the custom tags and reports errors by JSON
// field name.
func NewRequestValidator() *RequestValidator {
	v := validator.New()
	_ = v.RegisterValidation("base64payload", isBase64Payload)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Decode reads the body into dst and validates it.
func (rv *RequestValidator) Decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.ErrPayloadTooLarge
		}
		return apperrors.InvalidRequestWithError(err)
	}
	return rv.Struct(dst)
}

// Struct validates v and returns an APIError listing every rejected field.
func (rv *RequestValidator) Struct(v any) error {
	err := rv.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.InvalidRequestWithError(err)
	}

	out := make([]apperrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apperrors.ValidationError{
			Field:   fe.Namespace(),
			Message: formatValidationError(fe),
		})
	}
	return apperrors.NewValidationErrors(out)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "base64payload":
		return fmt.Sprintf("%s must be base64 encoded", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isBase64Payload accepts base64 text with an optional data URL header.
func isBase64Payload(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return false
		}
		s = s[i+1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=', r == '\n', r == '\r', r == ' ':
		default:
			return false
		}
	}
	return true
}

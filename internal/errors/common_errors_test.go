package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	cause := stderrors.New("disk full")

	tests := []struct {
		name    string
		err     *AppError
		wantMsg string
		wantTyp ErrorType
	}{
		{
			name:    "parsing error with cause",
			err:     NewParsingError("cannot read sheet", cause),
			wantMsg: "[PARSING] cannot read sheet: disk full",
			wantTyp: ErrTypeParsing,
		},
		{
			name:    "storage error with cause",
			err:     NewStorageError("insert failed", cause),
			wantMsg: "[STORAGE] insert failed: disk full",
			wantTyp: ErrTypeStorage,
		},
		{
			name:    "validation error without cause",
			err:     NewValidationErr("experimentId is required"),
			wantMsg: "[VALIDATION] experimentId is required",
			wantTyp: ErrTypeValidation,
		},
		{
			name:    "not found error",
			err:     NewNotFoundError("experiment #3 2024-05-01"),
			wantMsg: "[NOT_FOUND] experiment #3 2024-05-01 not found",
			wantTyp: ErrTypeNotFound,
		},
		{
			name:    "computation error",
			err:     NewComputationError("window has no samples", nil),
			wantMsg: "[COMPUTATION] window has no samples",
			wantTyp: ErrTypeComputation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.wantTyp, tt.err.Type)
			assert.True(t, IsType(tt.err, tt.wantTyp))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	wrapped := fmt.Errorf("import batch: %w", NewStorageError("find experiments", cause))

	assert.True(t, stderrors.Is(wrapped, cause))
	assert.True(t, IsType(wrapped, ErrTypeStorage))
	assert.False(t, IsType(wrapped, ErrTypeParsing))
	assert.Equal(t, ErrTypeStorage, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(cause))
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewParsingError("empty header row", nil).
		WithContext("file", "run-2024-05-01.xlsx").
		WithContext("row", 1)

	assert.Equal(t, "run-2024-05-01.xlsx", err.Context["file"])
	assert.Equal(t, 1, err.Context["row"])

	var bare AppError
	bare.WithContext("k", "v")
	assert.Equal(t, "v", bare.Context["k"])
}

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

func TestAppError_Error(t *testing.T) {
	t.Run("without wrapped error", func(t *testing.T) {
		err := apperrors.NewNotFoundError("facility WC-1 not found")
		assert.Equal(t, "NOT_FOUND: facility WC-1 not found", err.Error())
	})

	t.Run("with wrapped error", func(t *testing.T) {
		err := apperrors.NewInternalError("failed to upsert queue state", stderrors.New("connection reset"))
		assert.Equal(t, "INTERNAL: failed to upsert queue state: connection reset", err.Error())
	})
}

func TestIsType(t *testing.T) {
	base := apperrors.NewInvalidParameterError("service rate must be positive")
	wrapped := fmt.Errorf("facility WC-1: %w", base)

	assert.True(t, apperrors.IsType(base, apperrors.ErrorTypeInvalidParameter))
	assert.True(t, apperrors.IsType(wrapped, apperrors.ErrorTypeInvalidParameter))
	assert.False(t, apperrors.IsType(wrapped, apperrors.ErrorTypeNotFound))
	assert.False(t, apperrors.IsType(stderrors.New("plain"), apperrors.ErrorTypeInternal))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(apperrors.NewValidationError("bad payload")))
	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(stderrors.New("plain")))
}

func TestAppError_IsMatchesByType(t *testing.T) {
	sentinel := &apperrors.AppError{Type: apperrors.ErrorTypeInvalidParameter}
	err := fmt.Errorf("wrap: %w", apperrors.NewInvalidParameterError("servers must be >= 1"))

	assert.True(t, stderrors.Is(err, sentinel))
	assert.False(t, stderrors.Is(err, &apperrors.AppError{Type: apperrors.ErrorTypeNotFound}))
}

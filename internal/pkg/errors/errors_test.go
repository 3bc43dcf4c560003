package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_WithDetailsDoesNotMutate(t *testing.T) {
	err := ErrInvalidFilter.WithDetails(map[string]interface{}{"field": "window"})

	assert.Equal(t, "window", err.Details["field"])
	assert.Empty(t, ErrInvalidFilter.Details)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestAppError_Is(t *testing.T) {
	wrapped := fmt.Errorf("render map: %w", ErrDataNotLoaded.WithMessage("boundaries missing"))

	assert.True(t, stderrors.Is(wrapped, ErrDataNotLoaded))
	assert.False(t, stderrors.Is(wrapped, ErrInvalidFilter))

	var appErr *AppError
	assert.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, "DATA_NOT_LOADED: boundaries missing", appErr.Error())
}

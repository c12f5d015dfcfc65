package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrAttendanceLocked, "locked for 2024-05-09"))
	appErr := FromError(wrapped)
	assert.Equal(t, ErrAttendanceLocked.Code, appErr.Code)
	assert.Equal(t, "locked for 2024-05-09", appErr.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Clone(ErrGradeOutOfRange, "")))
	assert.True(t, IsValidation(Clone(ErrAttendanceLocked, "")))
	assert.True(t, IsValidation(Wrap(errors.New("x"), ErrValidation.Code, ErrValidation.Status, "bad")))
	assert.False(t, IsValidation(Clone(ErrRemoteOperation, "")))
	assert.False(t, IsValidation(errors.New("plain")))
}

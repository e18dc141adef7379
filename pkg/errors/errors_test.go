package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "bad payload", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: bad payload", err.Error())

	wrapped := WrapError(errors.New("pool exhausted"), ErrCodeInternal, "db failure", http.StatusInternalServerError)
	assert.Contains(t, wrapped.Error(), "pool exhausted")
}

func TestWrapError_KeepsCauseReachable(t *testing.T) {
	sentinel := errors.New("refresh token invalid")
	err := WrapError(sentinel, ErrCodeUnauthorized, "invalid refresh token", http.StatusUnauthorized)

	assert.ErrorIs(t, err, sentinel)
	assert.Same(t, sentinel, errors.Unwrap(err))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	err.WithContext("field", "email").WithContext("count", 2)

	assert.Equal(t, "email", err.Context["field"])
	assert.Equal(t, 2, err.Context["count"])
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"invalid input", NewInvalidInputError("x"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"not found", NewNotFoundError("stream"), ErrCodeNotFound, http.StatusNotFound},
		{"unauthorized", NewUnauthorizedError("x"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{"token expired", NewTokenExpiredError(), ErrCodeTokenExpired, http.StatusUnauthorized},
		{"account locked", NewAccountLockedError(), ErrCodeAccountLocked, http.StatusForbidden},
		{"forbidden", NewForbiddenError("x"), ErrCodeForbidden, http.StatusForbidden},
		{"conflict", NewConflictError("x"), ErrCodeConflict, http.StatusConflict},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"internal", NewInternalError("x"), ErrCodeInternal, http.StatusInternalServerError},
		{"unavailable", NewServiceUnavailableError("x"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
		})
	}

	assert.Equal(t, "stream not found", NewNotFoundError("stream").Message)
}

func TestNewWeakPasswordError_ListsViolations(t *testing.T) {
	err := NewWeakPasswordError([]string{"min_length", "digit"})

	assert.Equal(t, ErrCodeWeakPassword, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, []string{"min_length", "digit"}, err.Context["violations"])
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NewForbiddenError("no")))
	assert.False(t, IsAppError(errors.New("regular error")))
}

func TestGetAppError(t *testing.T) {
	appErr := NewAccountLockedError()

	assert.Same(t, appErr, GetAppError(appErr))

	chained := fmt.Errorf("login: %w", appErr)
	got := GetAppError(chained)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeAccountLocked, got.Code)

	assert.Nil(t, GetAppError(errors.New("regular error")))
	assert.Nil(t, GetAppError(nil))
}

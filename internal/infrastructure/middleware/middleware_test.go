package middleware

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/services"
	"vlsnet/internal/infrastructure/repositories/memory"
	"vlsnet/pkg/errors"
	"vlsnet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		err    error
		code   errors.ErrorCode
		status int
	}{
		{&domain.PasswordPolicyError{Violations: []string{domain.RuleDigit}}, errors.ErrCodeWeakPassword, http.StatusBadRequest},
		{fmt.Errorf("%w: title is required", domain.ErrInvalidInput), errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{domain.ErrInvalidCredentials, errors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{domain.ErrInvalidToken, errors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{domain.ErrExpiredToken, errors.ErrCodeTokenExpired, http.StatusUnauthorized},
		{domain.ErrRefreshTokenInvalid, errors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{domain.ErrAccountLocked, errors.ErrCodeAccountLocked, http.StatusForbidden},
		{domain.ErrForbidden, errors.ErrCodeForbidden, http.StatusForbidden},
		{fmt.Errorf("load: %w", domain.ErrStreamNotFound), errors.ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrIdentityNotFound, errors.ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrEmailTaken, errors.ErrCodeConflict, http.StatusConflict},
		{errors.NewRateLimitError(), errors.ErrCodeRateLimit, http.StatusTooManyRequests},
		{stderrors.New("boom"), errors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			appErr := ToAppError(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
		})
	}
}

func TestErrorHandlerMiddleware_RendersBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/weak", func(c *gin.Context) {
		_ = c.Error(&domain.PasswordPolicyError{Violations: []string{domain.RuleUppercase, domain.RuleSpecial}})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weak", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Details struct {
			Violations []string `json:"violations"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "WEAK_PASSWORD", body.Error)
	assert.Equal(t, []string{"uppercase", "special"}, body.Details.Violations)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := services.NewTokenService("secret", time.Hour, 24*time.Hour, memory.NewKeyValueStore())
	streamer, err := tokens.IssueAccessToken(&domain.Identity{ID: 7, Email: "s@x.com", Role: domain.RoleStreamer}, 0)
	require.NoError(t, err)
	viewer, err := tokens.IssueAccessToken(&domain.Identity{ID: 8, Email: "v@x.com", Role: domain.RoleViewer}, 0)
	require.NoError(t, err)
	superuser, err := tokens.IssueAccessToken(&domain.Identity{ID: 9, Email: "su@x.com", Role: domain.RoleViewer, IsSuperuser: true}, 0)
	require.NoError(t, err)

	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Subject)
	})
	router.GET("/studio", AuthMiddleware(tokens), RequireRoles(domain.RoleStreamer, domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/public", OptionalAuthMiddleware(tokens), func(c *gin.Context) {
		_, ok := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"no header", "/me", "", http.StatusUnauthorized, "authorization header required"},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized, "invalid authorization header format"},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"valid", "/me", "Bearer " + streamer, http.StatusOK, "s@x.com"},
		{"lowercase scheme", "/me", "bearer " + streamer, http.StatusOK, "s@x.com"},
		{"role allowed", "/studio", "Bearer " + streamer, http.StatusNoContent, ""},
		{"role denied", "/studio", "Bearer " + viewer, http.StatusForbidden, "FORBIDDEN"},
		{"superuser passes admin role", "/studio", "Bearer " + superuser, http.StatusNoContent, ""},
		{"optional anonymous", "/public", "", http.StatusOK, `"authenticated":false`},
		{"optional authenticated", "/public", "Bearer " + viewer, http.StatusOK, `"authenticated":true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestLoggerMiddleware(logger.NewContextLogger(zap.New(core))))
	router.GET("/streams/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/streams/5", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "/streams/:id", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status_code"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/streams/6", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

package middleware

import (
	stderrors "errors"
	"net/http"

	"vlsnet/internal/core/domain"
	"vlsnet/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToAppError maps domain errors onto the HTTP error taxonomy. Errors that are
// already *errors.AppError pass through unchanged; anything unknown becomes
// an internal error wrapping the cause.
func ToAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	var policyErr *domain.PasswordPolicyError
	if stderrors.As(err, &policyErr) {
		return errors.NewWeakPasswordError(policyErr.Violations)
	}

	switch {
	case stderrors.Is(err, domain.ErrInvalidInput), stderrors.Is(err, domain.ErrInvalidChatInput):
		return errors.NewInvalidInputError(err.Error())
	case stderrors.Is(err, domain.ErrExpiredToken):
		return errors.NewTokenExpiredError()
	case stderrors.Is(err, domain.ErrInvalidCredentials):
		return errors.NewUnauthorizedError("Incorrect email or password")
	case stderrors.Is(err, domain.ErrInvalidToken):
		return errors.NewUnauthorizedError("Could not validate credentials")
	case stderrors.Is(err, domain.ErrRefreshTokenInvalid):
		return errors.NewUnauthorizedError("Invalid or expired refresh token")
	case stderrors.Is(err, domain.ErrAccountLocked):
		return errors.NewAccountLockedError()
	case stderrors.Is(err, domain.ErrForbidden):
		return errors.NewForbiddenError("Not enough permissions")
	case stderrors.Is(err, domain.ErrStreamNotFound):
		return errors.NewNotFoundError("Stream")
	case stderrors.Is(err, domain.ErrIdentityNotFound):
		return errors.NewNotFoundError("User")
	case stderrors.Is(err, domain.ErrModerationNotFound):
		return errors.NewNotFoundError("Moderation record")
	case stderrors.Is(err, domain.ErrEmailTaken):
		return errors.NewConflictError("Email already registered")
	case stderrors.Is(err, domain.ErrStreamKeyTaken):
		return errors.NewConflictError("Stream key already in use")
	}

	return errors.WrapError(err, errors.ErrCodeInternal, "Internal server error", http.StatusInternalServerError)
}

// ErrorHandlerMiddleware renders the last error attached to the context as
// {error, message, details}.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("application error",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", c.Errors.Last().Err,
			)
		} else {
			logger.Debugw("request rejected",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		if c.Writer.Written() {
			return
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}

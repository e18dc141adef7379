package middleware

import (
	"strings"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/errors"
	"vlsnet/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
)

// BearerToken returns the token of an "Authorization: Bearer <token>" header,
// or "" when the header is missing or malformed.
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func AuthMiddleware(tokens ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			_ = c.Error(errors.NewUnauthorizedError("authorization header required"))
			c.Abort()
			return
		}

		token := BearerToken(c)
		if token == "" {
			_ = c.Error(errors.NewUnauthorizedError("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := tokens.VerifyAccessToken(token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present and
// lets anonymous requests through.
func OptionalAuthMiddleware(tokens ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c); token != "" {
			if claims, err := tokens.VerifyAccessToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed. A superuser passes
// wherever RoleAdmin does. Must run after AuthMiddleware.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			_ = c.Error(errors.NewUnauthorizedError("authentication required"))
			c.Abort()
			return
		}
		for _, role := range roles {
			if claims.Role == role || (role == domain.RoleAdmin && claims.Superuser) {
				c.Next()
				return
			}
		}
		_ = c.Error(domain.ErrForbidden)
		c.Abort()
	}
}

func ClaimsFrom(c *gin.Context) (*domain.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.Claims)
	return claims, ok
}

func setClaims(c *gin.Context, claims *domain.Claims) {
	c.Set(ClaimsKey, claims)
	c.Set(UserIDKey, claims.UserID)
	c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID.String()))
}

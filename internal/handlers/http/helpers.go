package http

import (
	"strconv"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/infrastructure/middleware"
	"vlsnet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// actorFrom returns the authenticated caller, or nil on anonymous routes.
func actorFrom(c *gin.Context) *domain.Actor {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil
	}
	actor := claims.Actor()
	return &actor
}

// requireActor is for routes behind AuthMiddleware.
func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor := actorFrom(c)
	if actor == nil {
		_ = c.Error(errors.NewUnauthorizedError("authentication required"))
		return domain.Actor{}, false
	}
	return *actor, true
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errors.NewInvalidInputError("invalid " + param))
		return 0, false
	}
	return id, true
}

func streamIDParam(c *gin.Context) (domain.StreamID, bool) {
	id, ok := parseID(c, "id")
	return domain.StreamID(id), ok
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format").WithContext("reason", err.Error()))
		return false
	}
	return true
}

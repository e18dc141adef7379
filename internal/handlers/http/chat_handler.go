package http

import (
	"net/http"
	"strconv"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/infrastructure/middleware"
	"vlsnet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ChatHandler exposes moderation management and the read-only chat history.
// Live chat itself is served by the websocket endpoint.
type ChatHandler struct {
	chatService       ports.ChatService
	moderationService ports.ModerationService
	streamService     ports.StreamService
	tokens            ports.TokenService
}

func NewChatHandler(
	chatService ports.ChatService,
	moderationService ports.ModerationService,
	streamService ports.StreamService,
	tokens ports.TokenService,
) *ChatHandler {
	return &ChatHandler{
		chatService:       chatService,
		moderationService: moderationService,
		streamService:     streamService,
		tokens:            tokens,
	}
}

func (h *ChatHandler) SetupRoutes(router gin.IRouter) {
	auth := middleware.AuthMiddleware(h.tokens)

	api := router.Group("/api/v1/streams/:id")
	{
		api.GET("/chat", h.GetHistory)
		api.GET("/moderation/:user_id", auth, h.GetModeration)
		api.PUT("/moderation/:user_id", auth, h.SetModeration)
	}
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			_ = c.Error(errors.NewInvalidInputError("invalid limit"))
			return
		}
		limit = n
	}

	if _, err := h.streamService.GetStream(c.Request.Context(), streamID); err != nil {
		_ = c.Error(err)
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), streamID, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if messages == nil {
		messages = []*domain.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) GetModeration(c *gin.Context) {
	actor, streamID, target, ok := h.moderationParams(c)
	if !ok {
		return
	}

	rec, err := h.moderationService.GetModeration(c.Request.Context(), actor, streamID, target)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetModeration applies a partial {is_muted, is_banned} update. Open
// connections pick the change up on their next message.
func (h *ChatHandler) SetModeration(c *gin.Context) {
	actor, streamID, target, ok := h.moderationParams(c)
	if !ok {
		return
	}
	var update domain.ModerationUpdate
	if !bindJSON(c, &update) {
		return
	}
	if update.IsMuted == nil && update.IsBanned == nil {
		_ = c.Error(errors.NewInvalidInputError("is_muted or is_banned is required"))
		return
	}

	rec, err := h.moderationService.SetModeration(c.Request.Context(), actor, streamID, target, update)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *ChatHandler) moderationParams(c *gin.Context) (domain.Actor, domain.StreamID, domain.UserID, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return domain.Actor{}, 0, 0, false
	}
	streamID, ok := streamIDParam(c)
	if !ok {
		return domain.Actor{}, 0, 0, false
	}
	target, ok := parseID(c, "user_id")
	if !ok {
		return domain.Actor{}, 0, 0, false
	}
	return actor, streamID, domain.UserID(target), true
}

package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/infrastructure/middleware"
	"vlsnet/pkg/errors"

	"github.com/gin-gonic/gin"
)

type StreamHandler struct {
	streamService ports.StreamService
	tokens        ports.TokenService
}

func NewStreamHandler(streamService ports.StreamService, tokens ports.TokenService) *StreamHandler {
	return &StreamHandler{
		streamService: streamService,
		tokens:        tokens,
	}
}

func (h *StreamHandler) SetupRoutes(router gin.IRouter) {
	auth := middleware.AuthMiddleware(h.tokens)
	optional := middleware.OptionalAuthMiddleware(h.tokens)

	api := router.Group("/api/v1/streams")
	{
		api.POST("", auth, middleware.RequireRoles(domain.RoleStreamer, domain.RoleAdmin), h.CreateStream)
		api.GET("", optional, h.ListStreams)
		api.GET("/:id", optional, h.GetStream)
		api.PUT("/:id", auth, h.UpdateStream)
		api.DELETE("/:id", auth, h.DeleteStream)
		api.POST("/:id/status", auth, h.UpdateStatus)
		api.GET("/:id/ingest-url", auth, h.GetIngestURL)
		api.GET("/:id/playback-url", h.GetPlaybackURL)
	}

	// called by the media server, keyed by stream key
	hooks := router.Group("/streams/webhook")
	{
		hooks.POST("/stream-start", h.StreamStartWebhook)
		hooks.POST("/stream-stop", h.StreamStopWebhook)
	}
}

type CreateStreamRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	IsPublic    *bool  `json:"is_public"`
}

type UpdateStreamRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	IsPublic    *bool                `json:"is_public"`
	Status      *domain.StreamStatus `json:"status"`
	StartTime   *time.Time           `json:"start_time"`
	EndTime     *time.Time           `json:"end_time"`
}

type UpdateStatusRequest struct {
	Status domain.StreamStatus `json:"status" binding:"required"`
}

type streamStatusResponse struct {
	ID     domain.StreamID     `json:"id"`
	Status domain.StreamStatus `json:"status"`
}

func (h *StreamHandler) CreateStream(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req CreateStreamRequest
	if !bindJSON(c, &req) {
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	stream, err := h.streamService.CreateStream(c.Request.Context(), actor, req.Title, req.Description, isPublic)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, stream.ViewFor(&actor))
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}

	stream, err := h.streamService.GetStream(c.Request.Context(), streamID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stream.ViewFor(actorFrom(c)))
}

// ListStreams supports ?status=&owner_id=&is_public=&limit=&offset=.
func (h *StreamHandler) ListStreams(c *gin.Context) {
	filter := domain.StreamFilter{
		Status: domain.StreamStatus(c.Query("status")),
	}

	if v := c.Query("owner_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			_ = c.Error(errors.NewInvalidInputError("invalid owner_id"))
			return
		}
		filter.OwnerID = domain.UserID(id)
	}
	if v := c.Query("is_public"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			_ = c.Error(errors.NewInvalidInputError("invalid is_public"))
			return
		}
		filter.IsPublic = &b
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				_ = c.Error(errors.NewInvalidInputError("invalid " + name))
				return
			}
			*dst = n
		}
	}

	streams, err := h.streamService.ListStreams(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	actor := actorFrom(c)
	out := make([]domain.Stream, 0, len(streams))
	for _, s := range streams {
		out = append(out, s.ViewFor(actor))
	}
	c.JSON(http.StatusOK, out)
}

func (h *StreamHandler) UpdateStream(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}
	var req UpdateStreamRequest
	if !bindJSON(c, &req) {
		return
	}

	stream, err := h.streamService.UpdateStream(c.Request.Context(), actor, streamID, domain.StreamUpdate{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Status:      req.Status,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stream.ViewFor(&actor))
}

func (h *StreamHandler) DeleteStream(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}

	if err := h.streamService.DeleteStream(c.Request.Context(), actor, streamID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StreamHandler) UpdateStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	stream, err := h.streamService.UpdateStatus(c.Request.Context(), actor, streamID, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, streamStatusResponse{ID: stream.ID, Status: stream.Status})
}

func (h *StreamHandler) GetIngestURL(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}

	url, err := h.streamService.IngestURL(c.Request.Context(), actor, streamID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingest_url": url})
}

func (h *StreamHandler) GetPlaybackURL(c *gin.Context) {
	streamID, ok := streamIDParam(c)
	if !ok {
		return
	}

	url, err := h.streamService.PlaybackURL(c.Request.Context(), streamID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playback_url": url})
}

func (h *StreamHandler) StreamStartWebhook(c *gin.Context) {
	h.handleIngestWebhook(c, true)
}

func (h *StreamHandler) StreamStopWebhook(c *gin.Context) {
	h.handleIngestWebhook(c, false)
}

// handleIngestWebhook reads the stream key from a JSON body or a form
// (nginx-rtmp posts the key as "name").
func (h *StreamHandler) handleIngestWebhook(c *gin.Context, started bool) {
	var payload struct {
		Name      string `json:"name" form:"name"`
		StreamKey string `json:"stream_key" form:"stream_key"`
	}
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		err = c.ShouldBindJSON(&payload)
	} else {
		err = c.ShouldBind(&payload)
	}
	if err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid webhook payload"))
		return
	}

	key := payload.Name
	if key == "" {
		key = payload.StreamKey
	}
	if key == "" {
		_ = c.Error(errors.NewInvalidInputError("Missing stream_key"))
		return
	}

	stream, err := h.streamService.HandleIngestEvent(c.Request.Context(), key, started)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, streamStatusResponse{ID: stream.ID, Status: stream.Status})
}

package http

import (
	"net/http"
	"time"

	"vlsnet/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChatStats is the live view of the chat fanout reported by /health.
type ChatStats interface {
	ConnectionCount() int
}

type HealthHandler struct {
	checker  *monitoring.HealthChecker
	chat     ChatStats
	streams  func() int
	gatherer prometheus.Gatherer
}

// NewHealthHandler serves /health, /ready and, when gatherer is non-nil,
// /metrics.
func NewHealthHandler(checker *monitoring.HealthChecker, chat ChatStats, activeStreams func() int, gatherer prometheus.Gatherer) *HealthHandler {
	return &HealthHandler{
		checker:  checker,
		chat:     chat,
		streams:  activeStreams,
		gatherer: gatherer,
	}
}

func (h *HealthHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

// Health is the liveness probe; it never touches backends.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":    monitoring.StatusHealthy,
		"timestamp": time.Now().Unix(),
	}
	if h.chat != nil {
		resp["connections"] = h.chat.ConnectionCount()
	}
	if h.streams != nil {
		resp["active_streams"] = h.streams()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.checker.GetReadinessStatus(c.Request.Context())
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

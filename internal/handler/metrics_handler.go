package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/inbox-manager-api/internal/service"
	"github.com/noah-isme/inbox-manager-api/pkg/response"
)

type connectionStatusSource interface {
	Status(ctx context.Context) service.ConnectionStatus
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics     *service.MetricsService
	connections connectionStatusSource
}

// NewMetricsHandler constructs a metrics handler. connections may be nil,
// in which case readiness always succeeds.
func NewMetricsHandler(metrics *service.MetricsService, connections connectionStatusSource) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, connections: connections}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 while a configured store connection is unhealthy. Having
// no connection at all is a valid state and counts as ready.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.connections == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	status := h.connections.Status(c.Request.Context())
	if status.Connected && !status.Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": status.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connected": status.Connected})
}

// Summary godoc
// @Summary Runtime counters
// @Tags Observability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	response.OK(c, h.metrics.Snapshot())
}

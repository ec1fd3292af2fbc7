package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/inbox-manager-api/internal/middleware"
	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/response"
)

type dashboardService interface {
	Dashboard(ctx context.Context, req service.TimeRangeRequest) (*models.DashboardStats, bool, error)
}

// DashboardHandler wires dashboard statistics to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats godoc
// @Summary Pipeline statistics for a time range
// @Tags Dashboard
// @Produce json
// @Param range query string false "24h (default), 7d, 30d, 90d or custom"
// @Param start query string false "Custom range start (YYYY-MM-DD)"
// @Param end query string false "Custom range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req service.TimeRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	start := time.Now()
	stats, cacheHit, err := h.service.Dashboard(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, middleware.MetaProcessingTime, time.Since(start).Milliseconds())
	response.JSON(c, http.StatusOK, stats, middleware.ExtractMeta(c))
}

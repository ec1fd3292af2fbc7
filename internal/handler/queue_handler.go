package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/inbox-manager-api/internal/middleware"
	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/response"
)

const streamHeartbeat = 15 * time.Second

type queueCatalog interface {
	List() []models.QueueDefinition
}

type viewOpener interface {
	Open(ctx context.Context, req service.OpenViewRequest) (*service.ViewSession, error)
	Close(id string) error
}

type queueExporter interface {
	Export(ctx context.Context, req service.OpenViewRequest, format string) (*service.ExportFile, error)
}

// QueueHandlerConfig tunes queue endpoints.
type QueueHandlerConfig struct {
	SettleTimeout time.Duration
	Heartbeat     time.Duration
}

// QueueHandler serves queue contents as snapshots, live streams and exports.
type QueueHandler struct {
	catalog  queueCatalog
	views    viewOpener
	exporter queueExporter
	cfg      QueueHandlerConfig
}

// NewQueueHandler constructs the handler.
func NewQueueHandler(catalog queueCatalog, views viewOpener, exporter queueExporter, cfg QueueHandlerConfig) *QueueHandler {
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 5 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = streamHeartbeat
	}
	return &QueueHandler{catalog: catalog, views: views, exporter: exporter, cfg: cfg}
}

// List godoc
// @Summary List moderation queues
// @Tags Queues
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queues [get]
func (h *QueueHandler) List(c *gin.Context) {
	if h.catalog == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	queues := h.catalog.List()
	middleware.SetMeta(c, middleware.MetaTotal, len(queues))
	response.OK(c, queues, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Current contents of a queue
// @Tags Queues
// @Produce json
// @Param queue path string true "Queue name"
// @Param range query string false "24h, 7d, 30d, 90d or custom (windowed queues only)"
// @Param start query string false "Custom range start (YYYY-MM-DD)"
// @Param end query string false "Custom range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /queues/{queue} [get]
func (h *QueueHandler) Get(c *gin.Context) {
	if h.views == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	req, ok := bindOpenRequest(c)
	if !ok {
		return
	}
	session, err := h.views.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer h.views.Close(session.ID())

	snap := waitSettled(c.Request.Context(), session, h.cfg.SettleTimeout)
	middleware.SetMeta(c, middleware.MetaTotal, len(snap.Items))
	middleware.SetMeta(c, middleware.MetaSettled, snap.Settled())
	response.OK(c, snap, middleware.ExtractMeta(c))
}

// Stream godoc
// @Summary Live queue updates as Server-Sent Events
// @Description Emits a "snapshot" event whenever the view changes and "ping" heartbeats.
// @Tags Queues
// @Produce text/event-stream
// @Param queue path string true "Queue name"
// @Param range query string false "24h, 7d, 30d, 90d or custom (windowed queues only)"
// @Param start query string false "Custom range start (YYYY-MM-DD)"
// @Param end query string false "Custom range end (YYYY-MM-DD)"
// @Router /queues/{queue}/stream [get]
func (h *QueueHandler) Stream(c *gin.Context) {
	if h.views == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	req, ok := bindOpenRequest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	session, err := h.views.Open(ctx, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer h.views.Close(session.ID())

	updates, stop := session.Watch()
	defer stop()
	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-View-ID", session.ID())
	c.Stream(func(_ io.Writer) bool {
		select {
		case snap, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		case now := <-heartbeat.C:
			c.SSEvent("ping", now.UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// Export godoc
// @Summary Download a queue as CSV or PDF
// @Tags Queues
// @Produce text/csv
// @Produce application/pdf
// @Param queue path string true "Queue name"
// @Param format query string false "csv (default) or pdf"
// @Param range query string false "24h, 7d, 30d, 90d or custom (windowed queues only)"
// @Router /queues/{queue}/export [get]
func (h *QueueHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	req, ok := bindOpenRequest(c)
	if !ok {
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), req, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"")
	c.Header("X-Total-Count", strconv.Itoa(file.Rows))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func bindOpenRequest(c *gin.Context) (service.OpenViewRequest, bool) {
	var rng service.TimeRangeRequest
	if err := c.ShouldBindQuery(&rng); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return service.OpenViewRequest{}, false
	}
	return service.OpenViewRequest{Queue: c.Param("queue"), TimeRangeRequest: rng}, true
}

// waitSettled returns the first snapshot that is not loading, or the latest
// one when timeout elapses first.
func waitSettled(ctx context.Context, session *service.ViewSession, timeout time.Duration) models.ViewSnapshot {
	snap := session.Snapshot()
	if snap.Settled() {
		return snap
	}
	updates, stop := session.Watch()
	defer stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case next, open := <-updates:
			if !open {
				return snap
			}
			snap = next
			if snap.Settled() {
				return snap
			}
		case <-timer.C:
			return snap
		case <-ctx.Done():
			return snap
		}
	}
}

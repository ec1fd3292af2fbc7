package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/inbox-manager-api/internal/service"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/response"
)

type connectionService interface {
	Connect(ctx context.Context, settings service.ConnectionSettings) (service.ConnectionStatus, error)
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) service.ConnectionStatus
}

// ConnectionHandler manages the store connection shared by every view.
type ConnectionHandler struct {
	service connectionService
}

// NewConnectionHandler constructs the handler.
func NewConnectionHandler(service connectionService) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// Get godoc
// @Summary Current store connection
// @Tags Connection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /connection [get]
func (h *ConnectionHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.OK(c, h.service.Status(c.Request.Context()))
}

// Connect godoc
// @Summary Connect to a store, replacing the current connection
// @Tags Connection
// @Accept json
// @Produce json
// @Param payload body service.ConnectionSettings true "Connection settings"
// @Success 200 {object} response.Envelope
// @Router /connection [put]
func (h *ConnectionHandler) Connect(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var settings service.ConnectionSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status, err := h.service.Connect(c.Request.Context(), settings)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// Disconnect godoc
// @Summary Drop the store connection
// @Tags Connection
// @Success 204
// @Router /connection [delete]
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if err := h.service.Disconnect(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

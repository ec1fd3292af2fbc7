package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/inbox-manager-api/internal/service"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/response"
)

type viewRegistry interface {
	Get(id string) (*service.ViewSession, error)
	Close(id string) error
}

// ViewHandler operates on live views opened by a stream.
type ViewHandler struct {
	views viewRegistry
}

// NewViewHandler constructs the handler.
func NewViewHandler(views viewRegistry) *ViewHandler {
	return &ViewHandler{views: views}
}

// Get godoc
// @Summary Snapshot of a live view
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id} [get]
func (h *ViewHandler) Get(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	response.OK(c, session.Snapshot())
}

// Refresh godoc
// @Summary Re-run the view query
// @Tags Views
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /views/{id}/refresh [post]
func (h *ViewHandler) Refresh(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	// A failed query is reported through the snapshot notice.
	if err := session.Refresh(c.Request.Context()); err != nil && !errors.Is(err, appErrors.ErrQuery) {
		response.Error(c, err)
		return
	}
	response.OK(c, session.Snapshot())
}

// DismissNotice godoc
// @Summary Dismiss the current notice of a view
// @Tags Views
// @Param id path string true "View ID"
// @Success 204
// @Router /views/{id}/dismiss [post]
func (h *ViewHandler) DismissNotice(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.DismissNotice()
	response.NoContent(c)
}

// Close godoc
// @Summary Close a live view
// @Tags Views
// @Param id path string true "View ID"
// @Success 204
// @Router /views/{id} [delete]
func (h *ViewHandler) Close(c *gin.Context) {
	if h.views == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if err := h.views.Close(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *ViewHandler) session(c *gin.Context) (*service.ViewSession, bool) {
	if h.views == nil {
		response.Error(c, appErrors.ErrInternal)
		return nil, false
	}
	session, err := h.views.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return session, true
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
	"github.com/noah-isme/inbox-manager-api/pkg/response"
)

type recordService interface {
	Decide(ctx context.Context, id string, req service.DecisionRequest) (models.Record, error)
	Cancel(ctx context.Context, id string) (models.Record, error)
	Reply(ctx context.Context, id string, req service.ReplyRequest) (models.Record, error)
	RespondImportant(ctx context.Context, id string, req service.ResponseRequest) (models.Record, error)
	RespondEscalation(ctx context.Context, id string, req service.ResponseRequest) (models.Record, error)
	Remove(ctx context.Context, id string) (models.Record, error)
	Restore(ctx context.Context, id string) (models.Record, error)
	Delete(ctx context.Context, id string) error
}

// RecordHandler exposes the moderation actions available on queue cards.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(service recordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// Decide godoc
// @Summary Approve, object to or hand off a drafted reply
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/decision [post]
func (h *RecordHandler) Decide(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req service.DecisionRequest
	if !bindBody(c, &req) {
		return
	}
	record, err := h.service.Decide(c.Request.Context(), c.Param("id"), req)
	respondRecord(c, record, err)
}

// Cancel godoc
// @Summary Cancel a drafted reply
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/cancel [post]
func (h *RecordHandler) Cancel(c *gin.Context) {
	h.simple(c, recordService.Cancel)
}

// Reply godoc
// @Summary Send a manual reply
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.ReplyRequest true "Reply"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/reply [post]
func (h *RecordHandler) Reply(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req service.ReplyRequest
	if !bindBody(c, &req) {
		return
	}
	record, err := h.service.Reply(c.Request.Context(), c.Param("id"), req)
	respondRecord(c, record, err)
}

// RespondImportant godoc
// @Summary Answer an important email
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.ResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/important-reply [post]
func (h *RecordHandler) RespondImportant(c *gin.Context) {
	h.respond(c, func(ctx context.Context, id string, req service.ResponseRequest) (models.Record, error) {
		return h.service.RespondImportant(ctx, id, req)
	})
}

// RespondEscalation godoc
// @Summary Answer an escalated email
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.ResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/escalation-reply [post]
func (h *RecordHandler) RespondEscalation(c *gin.Context) {
	h.respond(c, func(ctx context.Context, id string, req service.ResponseRequest) (models.Record, error) {
		return h.service.RespondEscalation(ctx, id, req)
	})
}

// Remove godoc
// @Summary Move a record to the recovery queue
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/remove [post]
func (h *RecordHandler) Remove(c *gin.Context) {
	h.simple(c, recordService.Remove)
}

// Restore godoc
// @Summary Restore a removed or canceled record
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/restore [post]
func (h *RecordHandler) Restore(c *gin.Context) {
	h.simple(c, recordService.Restore)
}

// Delete godoc
// @Summary Permanently delete a record
// @Tags Records
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *RecordHandler) simple(c *gin.Context, action func(svc recordService, ctx context.Context, id string) (models.Record, error)) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	record, err := action(h.service, c.Request.Context(), c.Param("id"))
	respondRecord(c, record, err)
}

func (h *RecordHandler) respond(c *gin.Context, action func(ctx context.Context, id string, req service.ResponseRequest) (models.Record, error)) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req service.ResponseRequest
	if !bindBody(c, &req) {
		return
	}
	record, err := action(c.Request.Context(), c.Param("id"), req)
	respondRecord(c, record, err)
}

func bindBody(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func respondRecord(c *gin.Context, record models.Record, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

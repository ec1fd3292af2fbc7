package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

type connectionSource interface {
	Require() (*Connection, error)
}

type tableRefresher interface {
	RefreshTable(ctx context.Context, table string) error
}

// DecisionRequest is a SendGuard moderation decision.
type DecisionRequest struct {
	Permission string `json:"permission" validate:"required"`
	Feedback   string `json:"feedback" validate:"max=10000"`
}

// ReplyRequest is a manual reply written by an operator.
type ReplyRequest struct {
	Reply string `json:"reply" validate:"required,max=20000"`
	Name  string `json:"name" validate:"max=200"`
}

// ResponseRequest answers an important or escalated item.
type ResponseRequest struct {
	Reply string `json:"reply" validate:"required,max=20000"`
}

// RecordServiceParams groups constructor dependencies.
type RecordServiceParams struct {
	Connections connectionSource
	Views       tableRefresher
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// RecordService performs the single-row moderation actions and refreshes
// the views of the affected table afterwards.
type RecordService struct {
	connections connectionSource
	views       tableRefresher
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRecordService constructs a RecordService.
func NewRecordService(params RecordServiceParams) *RecordService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &RecordService{
		connections: params.Connections,
		views:       params.Views,
		validator:   params.Validator,
		logger:      params.Logger,
	}
}

// Decide applies Approval, Objection or Manual Handle. Objection and Manual
// Handle require feedback; Objection also bumps the edited counter.
func (s *RecordService) Decide(ctx context.Context, id string, req DecisionRequest) (models.Record, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	permission := models.Permission(strings.TrimSpace(req.Permission))
	changes := models.RecordChanges{Set: map[string]interface{}{models.ColumnPermission: string(permission)}}
	switch permission {
	case models.PermissionApproval:
	case models.PermissionObjection, models.PermissionManualHandle:
		feedback := strings.TrimSpace(req.Feedback)
		if feedback == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "feedback is required for this action")
		}
		changes.Set[models.ColumnFeedback] = feedback
		if permission == models.PermissionObjection {
			changes.Increment = []string{models.ColumnEdited}
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "permission must be Approval, Objection or Manual Handle")
	}
	return s.update(ctx, "decision", id, changes)
}

// Cancel marks a SendGuard item as canceled.
func (s *RecordService) Cancel(ctx context.Context, id string) (models.Record, error) {
	return s.update(ctx, "cancel", id, set(models.ColumnPermission, string(models.PermissionCancel)))
}

// Reply stores a manual reply and marks the item replied.
func (s *RecordService) Reply(ctx context.Context, id string, req ReplyRequest) (models.Record, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reply cannot be empty")
	}
	var name interface{}
	if trimmed := strings.TrimSpace(req.Name); trimmed != "" {
		name = trimmed
	}
	return s.update(ctx, "reply", id, models.RecordChanges{Set: map[string]interface{}{
		models.ColumnHumanReply: req.Reply,
		models.ColumnHumanName:  name,
		models.ColumnReplied:    true,
	}})
}

// RespondImportant answers an important item.
func (s *RecordService) RespondImportant(ctx context.Context, id string, req ResponseRequest) (models.Record, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reply cannot be empty")
	}
	return s.update(ctx, "important_reply", id, models.RecordChanges{Set: map[string]interface{}{
		models.ColumnImportantReply:   req.Reply,
		models.ColumnImportantReplied: true,
	}})
}

// RespondEscalation answers an escalated item.
func (s *RecordService) RespondEscalation(ctx context.Context, id string, req ResponseRequest) (models.Record, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reply cannot be empty")
	}
	return s.update(ctx, "escalation_reply", id, models.RecordChanges{Set: map[string]interface{}{
		models.ColumnEscalatedReply:   req.Reply,
		models.ColumnEscalatedReplied: true,
	}})
}

// Remove hides an item from every queue except recovery.
func (s *RecordService) Remove(ctx context.Context, id string) (models.Record, error) {
	return s.update(ctx, "remove", id, set(models.ColumnRemoved, true))
}

// Restore returns a removed or canceled item to SendGuard.
func (s *RecordService) Restore(ctx context.Context, id string) (models.Record, error) {
	return s.update(ctx, "restore", id, models.RecordChanges{Set: map[string]interface{}{
		models.ColumnRemoved:    false,
		models.ColumnPermission: string(models.PermissionWaiting),
	}})
}

// Delete permanently removes a row.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	conn, err := s.target(id)
	if err != nil {
		return err
	}
	old, err := conn.Store().Delete(ctx, id)
	if err != nil {
		return s.storeError("delete", id, err)
	}
	s.afterWrite(ctx, conn, models.ChangeEvent{Table: conn.Table(), Kind: models.ChangeDelete, OldRecord: old})
	return nil
}

func (s *RecordService) update(ctx context.Context, action, id string, changes models.RecordChanges) (models.Record, error) {
	conn, err := s.target(id)
	if err != nil {
		return nil, err
	}
	record, err := conn.Store().Update(ctx, id, changes)
	if err != nil {
		return nil, s.storeError(action, id, err)
	}
	s.logger.Info("record updated", zap.String("action", action), zap.String("id", id), zap.String("table", conn.Table()))
	s.afterWrite(ctx, conn, models.ChangeEvent{Table: conn.Table(), Kind: models.ChangeUpdate, Record: record})
	return record, nil
}

func (s *RecordService) target(id string) (*Connection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record id is required")
	}
	if s.connections == nil {
		return nil, appErrors.ErrConnectionMissing
	}
	return s.connections.Require()
}

func (s *RecordService) storeError(action, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}
	s.logger.Warn("record write failed", zap.String("action", action), zap.String("id", id), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrQuery.Code, appErrors.ErrQuery.Status, "failed to "+strings.ReplaceAll(action, "_", " ")+" record")
}

// afterWrite broadcasts the change to other instances and refreshes the
// local views of the table. Failures are only logged.
func (s *RecordService) afterWrite(ctx context.Context, conn *Connection, evt models.ChangeEvent) {
	if announcer := conn.Announcer(); announcer != nil {
		if err := announcer.Announce(ctx, evt); err != nil {
			s.logger.Warn("announce change failed", zap.String("table", evt.Table), zap.Error(err))
		}
	}
	if s.views == nil {
		return
	}
	if err := s.views.RefreshTable(ctx, conn.Table()); err != nil {
		s.logger.Debug("refresh after write failed", zap.String("table", conn.Table()), zap.Error(err))
	}
}

func set(column string, value interface{}) models.RecordChanges {
	return models.RecordChanges{Set: map[string]interface{}{column: value}}
}

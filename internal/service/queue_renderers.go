package service

import (
	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// Renderer names accepted in queue definitions.
const (
	RendererRecord      = "record"
	RendererSendGuard   = "sendguard"
	RendererManualReply = "manual-reply"
	RendererEscalation  = "escalation"
	RendererImportant   = "important"
	RendererRecovery    = "recovery"
)

var queueRenderers = map[string]func(models.Record) models.QueueItem{
	RendererSendGuard:   renderSendGuard,
	RendererManualReply: renderManualReply,
	RendererEscalation:  renderFollowUp,
	RendererImportant:   renderFollowUp,
	RendererRecovery:    renderRecovery,
}

// RendererFor returns the item renderer registered under name, attaching
// actions to every item. Unknown names render raw records.
func RendererFor(name string, actions []string) ItemRenderer {
	card, ok := queueRenderers[name]
	if !ok {
		return RenderRecord
	}
	return func(record models.Record, _ func()) interface{} {
		item := card(record)
		item.Actions = actions
		return item
	}
}

func knownRenderer(name string) bool {
	if name == RendererRecord {
		return true
	}
	_, ok := queueRenderers[name]
	return ok
}

func baseItem(record models.Record) models.QueueItem {
	item := models.QueueItem{
		ID:     record.ID(),
		Title:  record.String(models.ColumnEmailSubject),
		Edited: record.Int(models.ColumnEdited),
		Fields: []models.CardField{},
	}
	if item.Title == "" {
		item.Title = "(no subject)"
	}
	if created := record.CreatedAt(); !created.IsZero() {
		item.CreatedAt = &created
	}
	return item
}

type cardBuilder []models.CardField

func (b cardBuilder) add(label string, record models.Record, column string) cardBuilder {
	value := record.String(column)
	if value == "" {
		return b
	}
	return append(b, models.CardField{Label: label, Value: value})
}

func renderSendGuard(record models.Record) models.QueueItem {
	item := baseItem(record)
	fields := cardBuilder{}.
		add("Subject", record, models.ColumnEmailSubject).
		add("Current Customer Message", record, models.ColumnCustomerEmail).
		add("Thread Context", record, models.ColumnPreviousEmailsSummary).
		add("Draft Reply", record, models.ColumnDraftReply).
		add("Feedback", record, models.ColumnFeedback)
	if record.Bool(models.ColumnBookcall) {
		fields = fields.add("Availabilities", record, models.ColumnAvailabilities)
	}
	item.Fields = fields
	item.Details = cardBuilder{}.
		add("Reasoning", record, models.ColumnReasoning).
		add("CRM Notes", record, models.ColumnCRMNotes)
	if models.Permission(record.String(models.ColumnPermission)) == models.PermissionObjection {
		item.Badge = string(models.PermissionObjection)
	}
	return item
}

func renderManualReply(record models.Record) models.QueueItem {
	item := baseItem(record)
	fields := cardBuilder{}.
		add("Feedback from previous Objection", record, models.ColumnFeedback).
		add("Subject", record, models.ColumnEmailSubject).
		add("Current Customer Message", record, models.ColumnCustomerEmail).
		add("Thread Context", record, models.ColumnPreviousEmailsSummary)
	if record.Bool(models.ColumnBookcall) {
		fields = fields.add("Availabilities", record, models.ColumnAvailabilities)
	}
	item.Fields = fields
	item.Details = cardBuilder{}.
		add("Draft Reply", record, models.ColumnDraftReply).
		add("Thought Process", record, models.ColumnThoughtProcess).
		add("CRM Notes", record, models.ColumnCRMNotes)
	return item
}

func renderFollowUp(record models.Record) models.QueueItem {
	item := baseItem(record)
	item.Fields = cardBuilder{}.
		add("Subject", record, models.ColumnEmailSubject).
		add("Current Customer Message", record, models.ColumnCustomerEmail).
		add("Thread Context", record, models.ColumnPreviousEmailsSummary).
		add("Thought Process", record, models.ColumnReasoning)
	item.Details = cardBuilder{}.add("CRM Notes", record, models.ColumnCRMNotes)
	return item
}

func renderRecovery(record models.Record) models.QueueItem {
	item := baseItem(record)
	item.Badge = "Removed"
	if models.Permission(record.String(models.ColumnPermission)) == models.PermissionCancel {
		item.Badge = "Canceled"
	}
	item.Fields = cardBuilder{}.
		add("Subject", record, models.ColumnEmailSubject).
		add("Current Customer Message", record, models.ColumnCustomerEmail).
		add("Feedback", record, models.ColumnFeedback).
		add("Permission", record, models.ColumnPermission)
	return item
}

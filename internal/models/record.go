package models

import (
	"fmt"
	"time"
)

// Column names the core relies on. Every other field is owned by the pipeline.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
)

// Workflow columns written by the moderation actions.
const (
	ColumnPermission       = "permission"
	ColumnFeedback         = "feedback"
	ColumnEdited           = "edited"
	ColumnRemoved          = "removed"
	ColumnReplied          = "replied"
	ColumnHumanReply       = "human_reply"
	ColumnHumanName        = "human_name"
	ColumnMessageSent      = "message_sent"
	ColumnEscalation       = "escalation"
	ColumnEscalatedReply   = "Escalated_reply"
	ColumnEscalatedReplied = "Escalated_replied"
	ColumnImportant        = "important"
	ColumnImportantReply   = "Important_reply"
	ColumnImportantReplied = "Important_replied"
	ColumnBookcall         = "bookcall"
	ColumnObjectionNAI     = "Objection_nai"
)

// Content columns written by the pipeline and shown on queue cards.
const (
	ColumnEmailSubject          = "email_subject"
	ColumnCustomerEmail         = "Customer_Email"
	ColumnPreviousEmailsSummary = "Previous_Emails_Summary"
	ColumnDraftReply            = "draft_reply"
	ColumnReasoning             = "reasoning"
	ColumnThoughtProcess        = "thought_process"
	ColumnCRMNotes              = "CRM_notes"
	ColumnAvailabilities        = "Availabilities"
)

// Permission is the moderation state stored in the permission column.
type Permission string

const (
	PermissionApproval     Permission = "Approval"
	PermissionObjection    Permission = "Objection"
	PermissionManualHandle Permission = "Manual Handle"
	PermissionWaiting      Permission = "Waiting"
	PermissionEscalation   Permission = "Escalation"
	PermissionCancel       Permission = "Cancel"
	PermissionImportant    Permission = "Important"
	PermissionBookcall     Permission = "Bookcall"
)

// Record is a schema-flexible row of the moderation table.
type Record map[string]interface{}

// ID returns the row identifier rendered as a string.
func (r Record) ID() string {
	v, ok := r[ColumnID]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case []byte:
		return string(id)
	default:
		return fmt.Sprint(id)
	}
}

// CreatedAt returns the creation timestamp, or the zero time when absent or unparsable.
func (r Record) CreatedAt() time.Time {
	t, _ := AsTime(r[ColumnCreatedAt])
	return t
}

// String returns a textual field value or "".
func (r Record) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reports whether a boolean field is set to true.
func (r Record) Bool(column string) bool {
	switch v := r[column].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "t"
	default:
		return false
	}
}

// Int returns an integer field, tolerating the numeric types drivers and JSON produce.
func (r Record) Int(column string) int64 {
	switch v := r[column].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AsTime converts driver and JSON timestamp representations into time.Time.
func AsTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return parseTimestamp(t)
	case []byte:
		return parseTimestamp(string(t))
	default:
		return time.Time{}, false
	}
}

func parseTimestamp(raw string) (time.Time, bool) {
	layouts := []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02 15:04:05.999999", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ChangeKind enumerates row-level change notifications.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is a single notification from the table's change feed.
type ChangeEvent struct {
	Table      string     `json:"table"`
	Kind       ChangeKind `json:"type"`
	Record     Record     `json:"record,omitempty"`
	OldRecord  Record     `json:"old_record,omitempty"`
	ReceivedAt time.Time  `json:"-"`
}

// RecordChanges describes a single-row write.
type RecordChanges struct {
	Set       map[string]interface{}
	Increment []string
}

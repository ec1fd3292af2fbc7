package models

import "time"

// Stat keys reported by the dashboard, in display order.
const (
	StatTotal        = "Total"
	StatMessageSent  = "Message Sent"
	StatApproval     = "Approval"
	StatObjection    = "Objection"
	StatManualHandle = "Manual Handle"
	StatReplied      = "Replied"
	StatEscalation   = "Escalation"
	StatCancel       = "Cancel"
	StatImportant    = "Important"
	StatBookcall     = "Bookcall"
	StatWaiting      = "Waiting"
)

// StatOrder lists dashboard counters in display order.
var StatOrder = []string{
	StatTotal, StatMessageSent, StatApproval, StatObjection, StatManualHandle,
	StatReplied, StatEscalation, StatCancel, StatImportant, StatBookcall, StatWaiting,
}

// StatCount is one dashboard counter.
type StatCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DashboardStats aggregates counters over non-removed records in a window.
type DashboardStats struct {
	Range       string      `json:"range"`
	From        time.Time   `json:"from"`
	To          *time.Time  `json:"to,omitempty"`
	Counts      []StatCount `json:"counts"`
	Permission  []StatCount `json:"permissionBreakdown"`
	Overall     []StatCount `json:"overallBreakdown"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

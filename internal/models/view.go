package models

import "time"

// ViewStatus is the presentation state of a live view.
type ViewStatus string

const (
	ViewDisconnected ViewStatus = "disconnected"
	ViewLoading      ViewStatus = "loading"
	ViewEmpty        ViewStatus = "empty"
	ViewReady        ViewStatus = "ready"
)

// NoticeKind classifies transient failures surfaced to the operator.
type NoticeKind string

const (
	NoticeQueryError        NoticeKind = "query_error"
	NoticeSubscriptionError NoticeKind = "subscription_error"
)

// Notice is a dismissible notification attached to a view.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// ViewSnapshot is an immutable copy of a view's visible state.
type ViewSnapshot struct {
	SessionID    string        `json:"sessionId"`
	Queue        string        `json:"queue,omitempty"`
	Status       ViewStatus    `json:"status"`
	Items        []interface{} `json:"items"`
	EmptyMessage string        `json:"emptyMessage,omitempty"`
	Notice       *Notice       `json:"notice,omitempty"`
	Subscribed   bool          `json:"subscribed"`
	RefreshedAt  *time.Time    `json:"refreshedAt,omitempty"`
}

// Settled reports whether the snapshot reflects a completed fetch or a
// disconnected view.
func (s ViewSnapshot) Settled() bool {
	return s.Status != ViewLoading
}

// QueueDefinition describes one moderation queue shown by the dashboard.
type QueueDefinition struct {
	Name         string           `json:"name" yaml:"name"`
	Title        string           `json:"title" yaml:"title"`
	EmptyMessage string           `json:"emptyMessage" yaml:"emptyMessage"`
	Filter       FilterDescriptor `json:"filter" yaml:"filter"`
	TimeWindow   bool             `json:"timeWindow" yaml:"timeWindow"`
	DefaultRange string           `json:"defaultRange,omitempty" yaml:"defaultRange"`
	Renderer     string           `json:"renderer" yaml:"renderer"`
	Actions      []string         `json:"actions,omitempty" yaml:"actions"`
}

// CardField is one labelled value on a queue card.
type CardField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// QueueItem is the rendered form of a record inside a queue.
type QueueItem struct {
	ID        string      `json:"id"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
	Title     string      `json:"title"`
	Badge     string      `json:"badge,omitempty"`
	Edited    int64       `json:"edited,omitempty"`
	Fields    []CardField `json:"fields"`
	Details   []CardField `json:"details,omitempty"`
	Actions   []string    `json:"actions,omitempty"`
}

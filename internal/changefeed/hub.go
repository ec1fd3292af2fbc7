// Package changefeed fans table change notifications out to per-view
// subscriptions.
package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/pkg/jobs"
)

const jobTypeChange = "change_event"

// Handler receives change events for a subscribed table.
type Handler func(models.ChangeEvent)

// EventObserver records change-feed activity.
type EventObserver interface {
	ObserveChangeEvent(table string, kind string)
}

// HubConfig tunes event dispatch.
type HubConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
	Observer   EventObserver
}

// Hub keeps the per-table subscription registry and delivers published
// events to every live subscription of the event's table.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	queue  *jobs.Queue
	logger *zap.Logger
	obs    EventObserver

	runMu   sync.Mutex
	running bool
}

// NewHub constructs a hub. Events are dispatched by a jobs.Queue once Start
// is called; before that Publish delivers synchronously. Events of one table
// are delivered in publish order.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Hub{
		subs:   make(map[string]map[string]*Subscription),
		logger: cfg.Logger,
		obs:    cfg.Observer,
	}
	h.queue = jobs.NewQueue("changefeed", h.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: -1,
		Logger:     cfg.Logger,
	})
	return h
}

// Start launches the dispatch workers.
func (h *Hub) Start(ctx context.Context) {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.running {
		return
	}
	h.queue.Start(ctx)
	h.running = true
}

// Stop halts the dispatch workers. Pending events are dropped.
func (h *Hub) Stop() {
	h.runMu.Lock()
	running := h.running
	h.running = false
	h.runMu.Unlock()
	if running {
		h.queue.Stop()
	}
}

// Subscribe registers handler for every insert, update and delete on table.
// The subscription is live when Subscribe returns.
func (h *Hub) Subscribe(ctx context.Context, table string, handler Handler) (*Subscription, error) {
	if table == "" {
		return nil, fmt.Errorf("subscribe: table is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe: handler is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &Subscription{id: uuid.NewString(), table: table, handler: handler, hub: h}

	h.mu.Lock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[string]*Subscription)
	}
	h.subs[table][sub.id] = sub
	h.mu.Unlock()

	h.logger.Debug("changefeed subscribed", zap.String("table", table), zap.String("subscription_id", sub.id))
	return sub, nil
}

// Publish delivers evt to the subscribers of evt.Table.
func (h *Hub) Publish(evt models.ChangeEvent) error {
	if evt.Table == "" {
		return fmt.Errorf("publish: event has no table")
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	if h.obs != nil {
		h.obs.ObserveChangeEvent(evt.Table, string(evt.Kind))
	}

	h.runMu.Lock()
	running := h.running
	h.runMu.Unlock()
	if !running {
		h.dispatch(evt)
		return nil
	}
	return h.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeChange, Key: evt.Table, Payload: evt})
}

// SubscriberCount reports the live subscriptions on table.
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

func (h *Hub) handleJob(_ context.Context, job jobs.Job) error {
	evt, ok := job.Payload.(models.ChangeEvent)
	if !ok {
		h.logger.Warn("changefeed dropped malformed job", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	h.dispatch(evt)
	return nil
}

func (h *Hub) dispatch(evt models.ChangeEvent) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs[evt.Table]))
	for _, sub := range h.subs[evt.Table] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(evt, h.logger)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if byID, ok := h.subs[sub.table]; ok {
		delete(byID, sub.id)
		if len(byID) == 0 {
			delete(h.subs, sub.table)
		}
	}
}

// Subscription is one registration on a Hub.
type Subscription struct {
	id      string
	table   string
	handler Handler
	hub     *Hub

	mu     sync.Mutex
	closed bool
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Table returns the subscribed table.
func (s *Subscription) Table() string { return s.table }

// Close unregisters the subscription. Once Close returns the handler is not
// running and will not be invoked again. Close must not be called from
// within the handler.
func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	s.hub.remove(s)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Subscription) deliver(evt models.ChangeEvent, logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("changefeed handler panicked",
				zap.String("table", s.table),
				zap.String("subscription_id", s.id),
				zap.Any("panic", r),
			)
		}
	}()
	s.handler(evt)
}

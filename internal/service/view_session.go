package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

// ItemRenderer turns a record into a presentation item. refresh schedules a
// refresh of the owning view; items may keep it for later use but must not
// call it while rendering.
type ItemRenderer func(record models.Record, refresh func()) interface{}

// RenderRecord is the identity renderer.
func RenderRecord(record models.Record, _ func()) interface{} {
	return record
}

type viewObserver interface {
	fetchObserver
	ObserveViewSessions(delta int)
}

// ViewParams configures a live view.
type ViewParams struct {
	Queue        string
	Filter       models.FilterDescriptor
	Window       *models.TimeWindow
	Render       ItemRenderer
	EmptyMessage string
	// Debounce coalesces bursts of change events into one refresh. Zero
	// refreshes once per event.
	Debounce time.Duration
	Logger   *zap.Logger
	Metrics  viewObserver
	Now      func() time.Time
}

// ViewSession keeps one filtered, time-windowed collection in sync with the
// store and its change feed.
type ViewSession struct {
	id         string
	params     ViewParams
	fetcher    *CollectionFetcher
	subscriber *FeedSubscriber
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	attachMu sync.Mutex

	mu          sync.Mutex
	conn        *Connection
	status      models.ViewStatus
	items       []interface{}
	notice      *models.Notice
	subscribed  bool
	refreshedAt *time.Time
	closed      bool
	timer       *time.Timer
	watchers    map[int]chan models.ViewSnapshot
	nextWatcher int
}

// NewViewSession constructs a Disconnected session. Call Attach to bind it to
// a connection.
func NewViewSession(params ViewParams) *ViewSession {
	if params.Render == nil {
		params.Render = RenderRecord
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	var observer fetchObserver
	if params.Metrics != nil {
		observer = params.Metrics
		params.Metrics.ObserveViewSessions(1)
	}
	id := uuid.NewString()
	return &ViewSession{
		id:         id,
		params:     params,
		fetcher:    NewCollectionFetcher(observer),
		subscriber: &FeedSubscriber{},
		logger:     params.Logger.With(zap.String("view_id", id), zap.String("queue", params.Queue)),
		ctx:        ctx,
		cancel:     cancel,
		status:     models.ViewDisconnected,
		items:      []interface{}{},
		watchers:   make(map[int]chan models.ViewSnapshot),
	}
}

// ID identifies the session.
func (s *ViewSession) ID() string { return s.id }

// Queue returns the queue name the session was opened for.
func (s *ViewSession) Queue() string { return s.params.Queue }

// Params returns the session configuration.
func (s *ViewSession) Params() ViewParams { return s.params }

// Connection returns the attached connection or nil.
func (s *ViewSession) Connection() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Attach binds the session to conn, subscribes to the change feed and runs
// the initial fetch. A nil conn detaches. The returned error reports a failed
// initial fetch; the session stays usable and carries a notice.
func (s *ViewSession) Attach(ctx context.Context, conn *Connection) error {
	if conn == nil {
		return s.Detach()
	}
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return appErrors.ErrViewClosed
	}
	if s.conn == conn {
		s.mu.Unlock()
		return nil
	}
	s.conn = conn
	s.status = models.ViewLoading
	s.items = []interface{}{}
	s.subscribed = false
	s.notifyLocked()
	s.mu.Unlock()

	s.fetcher.Reset()

	onLost := func(err error) { s.feedLost(conn, err) }
	if err := s.subscriber.Open(ctx, conn.Feed(), conn.Table(), s.onChange, onLost); err != nil {
		s.logger.Warn("view subscription failed", zap.Error(err))
		s.setNotice(models.NoticeSubscriptionError, "Live updates unavailable", err)
	} else {
		s.mu.Lock()
		s.subscribed = true
		s.notifyLocked()
		s.mu.Unlock()
	}

	// The session is already Loading; the initial fetch must run even when
	// the caller has gone away.
	return s.refresh()
}

// feedLost degrades a subscribed session to manual refresh after its
// connection's change source stopped.
func (s *ViewSession) feedLost(conn *Connection, err error) {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	s.mu.Lock()
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.subscribed = false
	s.mu.Unlock()
	_ = s.subscriber.Close()
	s.logger.Warn("view live updates lost", zap.Error(err))
	s.setNotice(models.NoticeSubscriptionError, "Live updates stopped", err)
}

// Detach releases the subscription and returns the session to Disconnected.
func (s *ViewSession) Detach() error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.conn = nil
	s.status = models.ViewDisconnected
	s.items = []interface{}{}
	s.subscribed = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.fetcher.Reset()
	return s.subscriber.Close()
}

// Refresh re-runs the view query. It is safe to call concurrently and
// repeatedly; only the latest call's outcome is applied. Without a
// connection it returns CONNECTION_MISSING and performs no fetch. The read
// runs under the session's own context so a caller giving up does not
// surface as a query failure; ctx only gates starting the refresh.
func (s *ViewSession) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.refresh()
}

func (s *ViewSession) refresh() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return appErrors.ErrViewClosed
	}
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return appErrors.ErrConnectionMissing
	}
	if s.status != models.ViewLoading {
		s.status = models.ViewLoading
		s.notifyLocked()
	}
	s.mu.Unlock()

	q := query.Compile(s.params.Filter, s.params.Window, s.params.Now())
	_, err := s.fetcher.Fetch(s.ctx, conn.Store(), q, func(records []models.Record, fetchErr error, retained []models.Record) {
		s.apply(conn, records, fetchErr, retained)
	})
	if err != nil {
		s.logger.Warn("view refresh failed", zap.Error(err))
	}
	return err
}

// RequestRefresh schedules a refresh without waiting for it.
func (s *ViewSession) RequestRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return
	}
	s.wg.Add(1)
	go s.runRefresh()
}

// Snapshot returns the current visible state.
func (s *ViewSession) Snapshot() models.ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Watch streams snapshots, starting with the current one. Slow readers only
// ever see the latest snapshot. The channel closes when stop is called or
// the session closes.
func (s *ViewSession) Watch() (<-chan models.ViewSnapshot, func()) {
	ch := make(chan models.ViewSnapshot, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// DismissNotice clears the current notice.
func (s *ViewSession) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return
	}
	s.notice = nil
	s.notifyLocked()
}

// Closed reports whether Close has been called.
func (s *ViewSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down. In-flight fetches are discarded, the
// subscription is released and no callback touches the session after Close
// returns.
func (s *ViewSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w)
	}
	s.mu.Unlock()

	s.fetcher.Invalidate()
	err := s.subscriber.Close()
	s.wg.Wait()
	if s.params.Metrics != nil {
		s.params.Metrics.ObserveViewSessions(-1)
	}
	return err
}

func (s *ViewSession) onChange(evt models.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return
	}
	s.logger.Debug("view change event", zap.String("table", evt.Table), zap.String("type", string(evt.Kind)))
	if s.params.Debounce <= 0 {
		s.wg.Add(1)
		go s.runRefresh()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.params.Debounce, func() {
		s.mu.Lock()
		if s.closed || s.conn == nil {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.wg.Add(1)
		s.mu.Unlock()
		s.runRefresh()
	})
}

func (s *ViewSession) runRefresh() {
	defer s.wg.Done()
	if err := s.Refresh(s.ctx); err != nil && !errors.Is(err, appErrors.ErrViewClosed) && !errors.Is(err, context.Canceled) {
		s.logger.Debug("background refresh failed", zap.Error(err))
	}
}

func (s *ViewSession) apply(conn *Connection, records []models.Record, fetchErr error, retained []models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != conn {
		return
	}
	if fetchErr != nil {
		s.notice = &models.Notice{
			Kind:    models.NoticeQueryError,
			Title:   "Failed to load items",
			Message: fetchErr.Error(),
			At:      s.params.Now().UTC(),
		}
		s.status = statusFor(len(retained))
		s.notifyLocked()
		return
	}
	items := make([]interface{}, 0, len(records))
	for _, record := range records {
		items = append(items, s.params.Render(record, s.RequestRefresh))
	}
	s.items = items
	if s.notice != nil && s.notice.Kind == models.NoticeQueryError {
		s.notice = nil
	}
	now := s.params.Now().UTC()
	s.refreshedAt = &now
	s.status = statusFor(len(items))
	s.notifyLocked()
}

func (s *ViewSession) setNotice(kind models.NoticeKind, title string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = &models.Notice{Kind: kind, Title: title, Message: err.Error(), At: s.params.Now().UTC()}
	s.notifyLocked()
}

func (s *ViewSession) snapshotLocked() models.ViewSnapshot {
	snap := models.ViewSnapshot{
		SessionID:  s.id,
		Queue:      s.params.Queue,
		Status:     s.status,
		Items:      append([]interface{}{}, s.items...),
		Subscribed: s.subscribed,
	}
	if s.status == models.ViewEmpty {
		snap.EmptyMessage = s.params.EmptyMessage
	}
	if s.notice != nil {
		notice := *s.notice
		snap.Notice = &notice
	}
	if s.refreshedAt != nil {
		at := *s.refreshedAt
		snap.RefreshedAt = &at
	}
	return snap
}

func (s *ViewSession) notifyLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func statusFor(n int) models.ViewStatus {
	if n == 0 {
		return models.ViewEmpty
	}
	return models.ViewReady
}

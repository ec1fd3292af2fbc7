package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

const viewFanOut = 8

// OpenViewRequest selects a queue and, for windowed queues, its range.
type OpenViewRequest struct {
	Queue string
	TimeRangeRequest
}

// ViewManagerConfig tunes sessions opened by the manager.
type ViewManagerConfig struct {
	Debounce time.Duration
	Location *time.Location
}

// ViewManagerParams groups constructor dependencies.
type ViewManagerParams struct {
	Catalog *QueueCatalog
	Metrics viewObserver
	Logger  *zap.Logger
	Config  ViewManagerConfig
	Now     func() time.Time
}

// ViewManager owns every open view session and binds them to the current
// connection.
type ViewManager struct {
	catalog *QueueCatalog
	metrics viewObserver
	logger  *zap.Logger
	cfg     ViewManagerConfig
	now     func() time.Time

	// attachMu is held for writing while the connection is swapped so a
	// session opened concurrently never attaches to a stale handle.
	attachMu sync.RWMutex

	mu       sync.Mutex
	conn     *Connection
	sessions map[string]*ViewSession
}

// NewViewManager constructs a manager without a connection.
func NewViewManager(params ViewManagerParams) *ViewManager {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Config.Location == nil {
		params.Config.Location = time.UTC
	}
	return &ViewManager{
		catalog:  params.Catalog,
		metrics:  params.Metrics,
		logger:   params.Logger,
		cfg:      params.Config,
		now:      params.Now,
		sessions: make(map[string]*ViewSession),
	}
}

// Catalog exposes the queue catalog.
func (m *ViewManager) Catalog() *QueueCatalog { return m.catalog }

// Connection returns the handle sessions are attached to, or nil.
func (m *ViewManager) Connection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Open starts a session for a catalog queue. Queues without a time window
// ignore the range parameters.
func (m *ViewManager) Open(ctx context.Context, req OpenViewRequest) (*ViewSession, error) {
	if m.catalog == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "queue catalog not configured")
	}
	def, err := m.catalog.Get(req.Queue)
	if err != nil {
		return nil, err
	}
	params := ViewParams{
		Queue:        def.Name,
		Filter:       def.Filter,
		Render:       RendererFor(def.Renderer, def.Actions),
		EmptyMessage: def.EmptyMessage,
	}
	if def.TimeWindow {
		window, _, err := ParseTimeWindow(req.TimeRangeRequest, def.DefaultRange, m.cfg.Location)
		if err != nil {
			return nil, err
		}
		params.Window = window
	}
	return m.OpenView(ctx, params)
}

// OpenView registers a session for arbitrary parameters and attaches it to
// the current connection. A failed initial fetch is reported through the
// session's notice, not as an error.
func (m *ViewManager) OpenView(ctx context.Context, params ViewParams) (*ViewSession, error) {
	if params.Debounce == 0 {
		params.Debounce = m.cfg.Debounce
	}
	if params.Logger == nil {
		params.Logger = m.logger
	}
	if params.Metrics == nil {
		params.Metrics = m.metrics
	}
	if params.Now == nil {
		params.Now = m.now
	}

	m.attachMu.RLock()
	defer m.attachMu.RUnlock()

	session := NewViewSession(params)
	m.mu.Lock()
	m.sessions[session.ID()] = session
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		if err := session.Attach(ctx, conn); err != nil {
			m.logger.Warn("initial view fetch failed", zap.String("view_id", session.ID()), zap.Error(err))
		}
	}
	m.logger.Debug("view opened", zap.String("view_id", session.ID()), zap.String("queue", params.Queue))
	return session, nil
}

// Get returns an open session.
func (m *ViewManager) Get(id string) (*ViewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "view not found")
	}
	return session, nil
}

// Close tears down and forgets a session.
func (m *ViewManager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "view not found")
	}
	return session.Close()
}

// CloseAll tears down every session.
func (m *ViewManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*ViewSession)
	m.mu.Unlock()
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			m.logger.Warn("close view failed", zap.String("view_id", session.ID()), zap.Error(err))
		}
	}
}

// Count returns the number of open sessions.
func (m *ViewManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs lists open session ids in stable order.
func (m *ViewManager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetConnection re-binds every session to conn. A nil conn detaches them,
// moving each to Disconnected and releasing its subscription.
func (m *ViewManager) SetConnection(ctx context.Context, conn *Connection) error {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	m.mu.Lock()
	m.conn = conn
	sessions := m.snapshotLocked()
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(viewFanOut)
	for _, session := range sessions {
		session := session
		g.Go(func() error {
			if err := session.Attach(gctx, conn); err != nil {
				m.logger.Warn("rebind view failed", zap.String("view_id", session.ID()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// RefreshTable refreshes every session reading table and returns the first
// failure.
func (m *ViewManager) RefreshTable(ctx context.Context, table string) error {
	return m.refresh(ctx, func(conn *Connection) bool { return conn.Table() == table })
}

// RefreshAll refreshes every connected session.
func (m *ViewManager) RefreshAll(ctx context.Context) error {
	return m.refresh(ctx, func(*Connection) bool { return true })
}

func (m *ViewManager) refresh(ctx context.Context, match func(*Connection) bool) error {
	m.mu.Lock()
	sessions := m.snapshotLocked()
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(viewFanOut)
	for _, session := range sessions {
		conn := session.Connection()
		if conn == nil || !match(conn) {
			continue
		}
		session := session
		g.Go(func() error {
			err := session.Refresh(gctx)
			if errors.Is(err, appErrors.ErrViewClosed) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (m *ViewManager) snapshotLocked() []*ViewSession {
	out := make([]*ViewSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session)
	}
	return out
}

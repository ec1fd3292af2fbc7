package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

// ConnectionSettings describes the store a connection is dialed against.
type ConnectionSettings struct {
	Driver   string `json:"driver" validate:"required,oneof=postgres memory"`
	Table    string `json:"table" validate:"required,max=63"`
	Host     string `json:"host,omitempty" validate:"required_if=Driver postgres"`
	Port     int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty" validate:"required_if=Driver postgres"`
	SSLMode  string `json:"sslMode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// Redacted returns a copy safe to show to operators.
func (s ConnectionSettings) Redacted() ConnectionSettings {
	if s.Password != "" {
		s.Password = "********"
	}
	return s
}

// Dialer opens a connection for settings of one driver.
type Dialer func(ctx context.Context, settings ConnectionSettings) (*Connection, error)

// ConnectionListener is told whenever the current connection changes.
type ConnectionListener interface {
	SetConnection(ctx context.Context, conn *Connection) error
}

// ConnectionStatus reports the current connection.
type ConnectionStatus struct {
	Connected bool                `json:"connected"`
	Driver    string              `json:"driver,omitempty"`
	Table     string              `json:"table,omitempty"`
	OpenedAt  *time.Time          `json:"openedAt,omitempty"`
	Healthy   bool                `json:"healthy"`
	Error     string              `json:"error,omitempty"`
	Settings  *ConnectionSettings `json:"settings,omitempty"`
	Views     int                 `json:"views"`
}

type viewCounter interface {
	Count() int
}

// ConnectionManager swaps the store connection at runtime and rebinds the
// listeners to it.
type ConnectionManager struct {
	dialers   map[string]Dialer
	listeners []ConnectionListener
	views     viewCounter
	validator *validator.Validate
	logger    *zap.Logger

	opMu     sync.Mutex
	mu       sync.RWMutex
	current  *Connection
	settings *ConnectionSettings
}

// ConnectionManagerParams groups constructor dependencies.
type ConnectionManagerParams struct {
	Dialers   map[string]Dialer
	Listeners []ConnectionListener
	Views     viewCounter
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewConnectionManager constructs a manager with no connection.
func NewConnectionManager(params ConnectionManagerParams) *ConnectionManager {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &ConnectionManager{
		dialers:   params.Dialers,
		listeners: params.Listeners,
		views:     params.Views,
		validator: params.Validator,
		logger:    params.Logger,
	}
}

// AddListener registers l for future connection changes. It is not told
// about the current connection.
func (m *ConnectionManager) AddListener(l ConnectionListener) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Current returns the active connection or nil.
func (m *ConnectionManager) Current() *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Require returns the active connection or CONNECTION_MISSING.
func (m *ConnectionManager) Require() (*Connection, error) {
	conn := m.Current()
	if conn == nil {
		return nil, appErrors.ErrConnectionMissing
	}
	return conn, nil
}

// Connect dials settings, makes the result current and closes the previous
// connection.
func (m *ConnectionManager) Connect(ctx context.Context, settings ConnectionSettings) (ConnectionStatus, error) {
	if err := m.validator.Struct(settings); err != nil {
		return ConnectionStatus{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid connection settings")
	}
	dial, ok := m.dialers[settings.Driver]
	if !ok {
		return ConnectionStatus{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("driver %q is not available", settings.Driver))
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	conn, err := dial(ctx, settings)
	if err != nil {
		m.logger.Warn("connection dial failed", zap.String("driver", settings.Driver), zap.String("table", settings.Table), zap.Error(err))
		return ConnectionStatus{}, appErrors.Wrap(err, appErrors.ErrConnectionMissing.Code, appErrors.ErrConnectionMissing.Status, "failed to connect: "+err.Error())
	}
	m.swap(ctx, conn, &settings)
	m.logger.Info("connection established", zap.String("driver", settings.Driver), zap.String("table", conn.Table()))
	return m.Status(ctx), nil
}

// Adopt makes an already dialed connection current.
func (m *ConnectionManager) Adopt(ctx context.Context, conn *Connection, settings ConnectionSettings) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.swap(ctx, conn, &settings)
}

// Disconnect drops the current connection. Listeners move to Disconnected.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.Current() == nil {
		return nil
	}
	err := m.swap(ctx, nil, nil)
	m.logger.Info("connection dropped")
	return err
}

// Status reports the active connection and probes its health.
func (m *ConnectionManager) Status(ctx context.Context) ConnectionStatus {
	m.mu.RLock()
	conn, settings := m.current, m.settings
	m.mu.RUnlock()

	status := ConnectionStatus{}
	if m.views != nil {
		status.Views = m.views.Count()
	}
	if conn == nil {
		return status
	}
	opened := conn.OpenedAt()
	status.Connected = true
	status.Driver = conn.Driver()
	status.Table = conn.Table()
	status.OpenedAt = &opened
	if settings != nil {
		redacted := settings.Redacted()
		status.Settings = &redacted
	}
	if err := conn.Store().Ping(ctx); err != nil {
		status.Error = err.Error()
	} else {
		status.Healthy = true
	}
	return status
}

// Close drops the connection on shutdown.
func (m *ConnectionManager) Close(ctx context.Context) error {
	return m.Disconnect(ctx)
}

func (m *ConnectionManager) swap(ctx context.Context, conn *Connection, settings *ConnectionSettings) error {
	m.mu.Lock()
	previous := m.current
	m.current = conn
	m.settings = settings
	m.mu.Unlock()

	for _, listener := range m.listeners {
		if err := listener.SetConnection(ctx, conn); err != nil {
			m.logger.Warn("connection listener failed", zap.Error(err))
		}
	}
	if previous != nil && previous != conn {
		if err := previous.Close(); err != nil {
			m.logger.Warn("close previous connection failed", zap.Error(err))
			return err
		}
	}
	return nil
}

package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// Publisher accepts decoded change events.
type Publisher interface {
	Publish(evt models.ChangeEvent) error
}

// PostgresSourceConfig configures the LISTEN/NOTIFY source.
type PostgresSourceConfig struct {
	DSN                  string
	Channel              string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	Logger               *zap.Logger
}

// PostgresSource relays NOTIFY payloads emitted by a row trigger on the
// moderation table. The trigger is expected to call
//
//	pg_notify('<channel>', json_build_object('table', TG_TABLE_NAME, 'type', TG_OP,
//	    'record', row_to_json(NEW), 'old_record', row_to_json(OLD))::text)
type PostgresSource struct {
	cfg    PostgresSourceConfig
	target Publisher
	logger *zap.Logger
}

// NewPostgresSource constructs a source that publishes into target.
func NewPostgresSource(cfg PostgresSourceConfig, target Publisher) (*PostgresSource, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres changefeed: dsn is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("postgres changefeed: channel is required")
	}
	if cfg.MinReconnectInterval <= 0 {
		cfg.MinReconnectInterval = 2 * time.Second
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = time.Minute
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &PostgresSource{cfg: cfg, target: target, logger: cfg.Logger}, nil
}

// Run listens until ctx is cancelled.
func (s *PostgresSource) Run(ctx context.Context) error {
	listener := pq.NewListener(s.cfg.DSN, s.cfg.MinReconnectInterval, s.cfg.MaxReconnectInterval, s.reportEvent)
	defer listener.Close() //nolint:errcheck

	if err := listener.Listen(s.cfg.Channel); err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Channel, err)
	}
	s.logger.Info("postgres changefeed listening", zap.String("channel", s.cfg.Channel))

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			s.handleNotification(n)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				s.logger.Warn("postgres changefeed ping failed", zap.Error(err))
			}
		}
	}
}

// handleNotification decodes and publishes one notification. A nil
// notification signals a reconnect, after which events may have been lost.
func (s *PostgresSource) handleNotification(n *pq.Notification) {
	if n == nil {
		s.logger.Warn("postgres changefeed reconnected, notifications may have been missed", zap.String("channel", s.cfg.Channel))
		return
	}
	evt, err := Decode([]byte(n.Extra))
	if err != nil {
		s.logger.Warn("postgres changefeed dropped payload", zap.String("channel", n.Channel), zap.Error(err))
		return
	}
	if err := s.target.Publish(evt); err != nil {
		s.logger.Error("postgres changefeed publish failed", zap.String("table", evt.Table), zap.Error(err))
	}
}

func (s *PostgresSource) reportEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		s.logger.Debug("postgres changefeed connected")
	case pq.ListenerEventDisconnected:
		s.logger.Warn("postgres changefeed disconnected", zap.Error(err))
	case pq.ListenerEventReconnected:
		s.logger.Info("postgres changefeed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		s.logger.Warn("postgres changefeed connection attempt failed", zap.Error(err))
	}
}

package changefeed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// RedisSource relays change events published on a Redis channel, for
// deployments where the pipeline announces its writes over Redis.
type RedisSource struct {
	client  *redis.Client
	channel string
	target  Publisher
	logger  *zap.Logger
}

// NewRedisSource constructs a pub/sub source.
func NewRedisSource(client *redis.Client, channel string, target Publisher, logger *zap.Logger) (*RedisSource, error) {
	if client == nil {
		return nil, fmt.Errorf("redis changefeed: client is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("redis changefeed: channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSource{client: client, channel: channel, target: target, logger: logger}, nil
}

// Run consumes the channel until ctx is cancelled.
func (s *RedisSource) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close() //nolint:errcheck

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("redis changefeed listening", zap.String("channel", s.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handleMessage(msg.Payload)
		}
	}
}

func (s *RedisSource) handleMessage(payload string) {
	evt, err := Decode([]byte(payload))
	if err != nil {
		s.logger.Warn("redis changefeed dropped payload", zap.String("channel", s.channel), zap.Error(err))
		return
	}
	if err := s.target.Publish(evt); err != nil {
		s.logger.Error("redis changefeed publish failed", zap.String("table", evt.Table), zap.Error(err))
	}
}

// RedisAnnouncer publishes locally performed writes so that other API
// instances refresh their views.
type RedisAnnouncer struct {
	client  *redis.Client
	channel string
}

// NewRedisAnnouncer constructs an announcer on channel.
func NewRedisAnnouncer(client *redis.Client, channel string) *RedisAnnouncer {
	return &RedisAnnouncer{client: client, channel: channel}
}

// Announce publishes evt on the channel.
func (a *RedisAnnouncer) Announce(ctx context.Context, evt models.ChangeEvent) error {
	if a == nil || a.client == nil {
		return nil
	}
	payload, err := Encode(evt)
	if err != nil {
		return err
	}
	if err := a.client.Publish(ctx, a.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", a.channel, err)
	}
	return nil
}

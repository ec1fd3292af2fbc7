package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/changefeed"
	"github.com/noah-isme/inbox-manager-api/internal/repository"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	"github.com/noah-isme/inbox-manager-api/pkg/config"
	"github.com/noah-isme/inbox-manager-api/pkg/database"
)

// memoryDialer hands out in-process stores. Stores are kept per table so a
// reconnect sees earlier writes.
type memoryDialer struct {
	hub *changefeed.Hub

	mu     sync.Mutex
	stores map[string]*repository.MemoryRecordStore
}

func newMemoryDialer(hub *changefeed.Hub) *memoryDialer {
	return &memoryDialer{hub: hub, stores: map[string]*repository.MemoryRecordStore{}}
}

func (d *memoryDialer) Store(table string) *repository.MemoryRecordStore {
	d.mu.Lock()
	defer d.mu.Unlock()
	store, ok := d.stores[table]
	if !ok {
		store = repository.NewMemoryRecordStore(table, d.hub)
		d.stores[table] = store
	}
	return store
}

func (d *memoryDialer) Dial(_ context.Context, settings service.ConnectionSettings) (*service.Connection, error) {
	return service.NewConnection(service.ConnectionParams{
		Driver: config.StoreDriverMemory,
		Store:  d.Store(settings.Table),
		Feed:   service.NewHubFeed(d.hub),
	})
}

// postgresDialer opens a pool per connection and starts the configured
// change-feed source for its lifetime.
type postgresDialer struct {
	base    config.DatabaseConfig
	feed    config.ChangeFeedConfig
	hub     *changefeed.Hub
	redis   *redis.Client
	metrics *service.MetricsService
	logger  *zap.Logger
}

func (d *postgresDialer) Dial(ctx context.Context, settings service.ConnectionSettings) (*service.Connection, error) {
	dbCfg := d.base
	dbCfg.Host = settings.Host
	dbCfg.Name = settings.Database
	if settings.Port > 0 {
		dbCfg.Port = settings.Port
	}
	if settings.User != "" {
		dbCfg.User = settings.User
		dbCfg.Password = settings.Password
	}
	if settings.SSLMode != "" {
		dbCfg.SSLMode = settings.SSLMode
	}

	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	if err := database.RequireTable(ctx, db, settings.Table); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := repository.NewRecordRepository(db, settings.Table, d.metrics)

	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	feed := service.NewSourceFeed(service.NewHubFeed(d.hub))
	params := service.ConnectionParams{
		Driver: config.StoreDriverPostgres,
		Store:  store,
		Feed:   feed,
	}
	logger := d.logger.With(zap.String("table", settings.Table), zap.String("feed", d.feed.Driver))

	switch d.feed.Driver {
	case config.ChangeFeedPostgres:
		source, err := changefeed.NewPostgresSource(changefeed.PostgresSourceConfig{
			DSN:     dbCfg.DSN(),
			Channel: d.feed.Channel,
			Logger:  logger,
		}, d.hub)
		if err != nil {
			cancel()
			_ = db.Close()
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			superviseSource(runCtx, source, feed, logger)
		}()
	case config.ChangeFeedRedis:
		if d.redis == nil {
			cancel()
			_ = db.Close()
			return nil, fmt.Errorf("redis change feed requires a redis client")
		}
		source, err := changefeed.NewRedisSource(d.redis, d.feed.Channel, d.hub, logger)
		if err != nil {
			cancel()
			_ = db.Close()
			return nil, err
		}
		params.Announcer = changefeed.NewRedisAnnouncer(d.redis, d.feed.Channel)
		wg.Add(1)
		go func() {
			defer wg.Done()
			superviseSource(runCtx, source, feed, logger)
		}()
	default:
		// Views of this connection only update on manual refresh.
		params.Feed = nil
	}

	params.Close = func() error {
		cancel()
		wg.Wait()
		return db.Close()
	}
	conn, err := service.NewConnection(params)
	if err != nil {
		_ = params.Close()
		return nil, err
	}
	return conn, nil
}

type feedSource interface {
	Run(ctx context.Context) error
}

// superviseSource runs source until ctx ends. A source that stops on its
// own takes the connection's live updates down with it.
func superviseSource(ctx context.Context, source feedSource, feed *service.SourceFeed, logger *zap.Logger) {
	err := source.Run(ctx)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = errors.New("change feed source exited")
	}
	logger.Error("change feed stopped, views fall back to manual refresh", zap.Error(err))
	feed.Fail(err)
}

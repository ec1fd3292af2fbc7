// Package app wires the store connection, change feed and services used by
// the HTTP gateway and the CLI.
package app

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/changefeed"
	"github.com/noah-isme/inbox-manager-api/internal/repository"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	"github.com/noah-isme/inbox-manager-api/pkg/config"
	"github.com/noah-isme/inbox-manager-api/pkg/export"
)

// Deps holds what main must provide. Redis is optional; without it the
// stats cache stays disabled and the redis change feed cannot be used.
type Deps struct {
	Cfg     *config.Config
	Logger  *zap.Logger
	Redis   *redis.Client
	Metrics *service.MetricsService
}

// App is the fully wired application.
type App struct {
	Catalog     *service.QueueCatalog
	Metrics     *service.MetricsService
	Views       *service.ViewManager
	Connections *service.ConnectionManager
	Records     *service.RecordService
	Stats       *service.StatsService
	Exports     *service.ExportService

	cfg    *config.Config
	logger *zap.Logger
	hub    *changefeed.Hub
	memory *memoryDialer
}

// New builds the service graph. No store is connected yet; call Start.
func New(deps Deps) (*App, error) {
	if deps.Cfg == nil {
		return nil, errors.New("app: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = service.NewMetricsService()
	}
	cfg := deps.Cfg
	loc := cfg.Location()

	catalog, err := service.LoadQueueCatalog(cfg.Views.QueuesFile)
	if err != nil {
		return nil, err
	}

	hub := changefeed.NewHub(changefeed.HubConfig{
		Workers:  cfg.ChangeFeed.Workers,
		Logger:   logger.Named("changefeed"),
		Observer: metrics,
	})

	views := service.NewViewManager(service.ViewManagerParams{
		Catalog: catalog,
		Metrics: metrics,
		Logger:  logger.Named("views"),
		Config: service.ViewManagerConfig{
			Debounce: cfg.Views.RefreshDebounce,
			Location: loc,
		},
	})

	var cacheRepo service.CacheRepository
	if deps.Redis != nil {
		cacheRepo = repository.NewCacheRepository(deps.Redis, "inbox", logger.Named("cache"))
	}
	cache := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logger.Named("cache"), cfg.Stats.CacheEnabled && cacheRepo != nil)

	memory := newMemoryDialer(hub)
	pg := &postgresDialer{
		base:    cfg.Database,
		feed:    cfg.ChangeFeed,
		hub:     hub,
		redis:   deps.Redis,
		metrics: metrics,
		logger:  logger.Named("store"),
	}

	a := &App{
		Catalog: catalog,
		Metrics: metrics,
		Views:   views,
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		memory:  memory,
	}
	a.Connections = service.NewConnectionManager(service.ConnectionManagerParams{
		Dialers: map[string]service.Dialer{
			config.StoreDriverMemory:   memory.Dial,
			config.StoreDriverPostgres: pg.Dial,
		},
		Listeners: []service.ConnectionListener{views},
		Views:     views,
		Logger:    logger.Named("connection"),
	})
	a.Stats = service.NewStatsService(service.StatsServiceParams{
		Connections: a.Connections,
		Cache:       cache,
		Logger:      logger.Named("stats"),
		Config:      service.StatsServiceConfig{CacheTTL: cfg.Stats.CacheTTL, Location: loc},
	})
	a.Connections.AddListener(a.Stats)
	a.Records = service.NewRecordService(service.RecordServiceParams{
		Connections: a.Connections,
		Views:       views,
		Logger:      logger.Named("records"),
	})
	a.Exports = service.NewExportService(service.ExportServiceParams{
		Catalog:     catalog,
		Connections: a.Connections,
		PDF:         export.NewPDFExporter(),
		Location:    loc,
		Logger:      logger.Named("export"),
	})
	return a, nil
}

// Start launches event dispatch and connects the configured store. A failed
// initial connection is logged; the service keeps running disconnected.
func (a *App) Start(ctx context.Context) {
	a.hub.Start(ctx)
	if a.cfg.Store.Table == "" {
		a.logger.Info("no store table configured, starting disconnected")
		return
	}
	settings := a.InitialSettings()
	if _, err := a.Connections.Connect(ctx, settings); err != nil {
		a.logger.Warn("initial store connection failed", zap.Error(err), zap.Any("settings", settings.Redacted()))
	}
}

// InitialSettings derives connection settings from configuration.
func (a *App) InitialSettings() service.ConnectionSettings {
	db := a.cfg.Database
	return service.ConnectionSettings{
		Driver:   a.cfg.Store.Driver,
		Table:    a.cfg.Store.Table,
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Database: db.Name,
		SSLMode:  db.SSLMode,
	}
}

// MemoryStore returns the in-process store for table, creating it if needed.
func (a *App) MemoryStore(table string) *repository.MemoryRecordStore {
	return a.memory.Store(table)
}

// Close tears down views, the connection and event dispatch.
func (a *App) Close(ctx context.Context) error {
	a.Views.CloseAll()
	err := a.Connections.Close(ctx)
	if statsErr := a.Stats.Close(); err == nil {
		err = statsErr
	}
	a.hub.Stop()
	return err
}

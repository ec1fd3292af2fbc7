package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
)

const statsCachePrefix = "stats"

type statCounter struct {
	name  string
	where models.Predicate
	// adds names the counter whose result is added to this one.
	adds string
}

// Flag counters are folded into the permission counter of the same name.
var statCounters = []statCounter{
	{name: models.StatMessageSent, where: models.Eq(models.ColumnMessageSent, true)},
	{name: models.StatReplied, where: models.Eq(models.ColumnReplied, true)},
	{name: models.StatApproval, where: permissionIs(models.PermissionApproval)},
	{name: models.StatObjection, where: permissionIs(models.PermissionObjection)},
	{name: models.StatManualHandle, where: permissionIs(models.PermissionManualHandle)},
	{name: models.StatWaiting, where: permissionIs(models.PermissionWaiting)},
	{name: models.StatCancel, where: permissionIs(models.PermissionCancel)},
	{name: models.StatEscalation, where: permissionIs(models.PermissionEscalation)},
	{name: models.StatImportant, where: permissionIs(models.PermissionImportant)},
	{name: models.StatBookcall, where: permissionIs(models.PermissionBookcall)},
	{name: "escalation_flag", where: models.Eq(models.ColumnEscalation, true), adds: models.StatEscalation},
	{name: "important_flag", where: models.Eq(models.ColumnImportant, true), adds: models.StatImportant},
	{name: "bookcall_flag", where: models.Eq(models.ColumnBookcall, true), adds: models.StatBookcall},
}

func permissionIs(p models.Permission) models.Predicate {
	return models.Eq(models.ColumnPermission, string(p))
}

// StatsServiceConfig tunes dashboard statistics.
type StatsServiceConfig struct {
	CacheTTL     time.Duration
	DefaultRange string
	Location     *time.Location
}

// StatsServiceParams groups constructor dependencies.
type StatsServiceParams struct {
	Connections connectionSource
	Cache       *CacheService
	Logger      *zap.Logger
	Config      StatsServiceConfig
	Now         func() time.Time
}

// StatsService computes dashboard counters over non-removed records.
type StatsService struct {
	connections connectionSource
	cache       *CacheService
	logger      *zap.Logger
	cfg         StatsServiceConfig
	now         func() time.Time

	mu         sync.Mutex
	subscriber FeedSubscriber
}

// NewStatsService constructs a StatsService.
func NewStatsService(params StatsServiceParams) *StatsService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Config.DefaultRange == "" {
		params.Config.DefaultRange = models.Range24h
	}
	if params.Config.Location == nil {
		params.Config.Location = time.UTC
	}
	return &StatsService{
		connections: params.Connections,
		cache:       params.Cache,
		logger:      params.Logger,
		cfg:         params.Config,
		now:         params.Now,
	}
}

// Dashboard returns the counters for the requested range and whether they
// came from cache. Results are cached per table and window until the table
// changes.
func (s *StatsService) Dashboard(ctx context.Context, req TimeRangeRequest) (*models.DashboardStats, bool, error) {
	window, rangeName, err := ParseTimeWindow(req, s.cfg.DefaultRange, s.cfg.Location)
	if err != nil {
		return nil, false, err
	}
	conn, err := s.connections.Require()
	if err != nil {
		return nil, false, err
	}

	key := s.cacheKey(conn.Table(), window)
	var cached models.DashboardStats
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now()
	notRemoved := models.Or(models.IsNull(models.ColumnRemoved), models.Eq(models.ColumnRemoved, false))
	base := query.Compile(models.Expression(notRemoved), window, now).Where

	totals := make(map[string]int, len(statCounters)+1)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	count := func(name string, where models.Predicate) {
		g.Go(func() error {
			n, err := conn.Store().Count(gctx, where)
			if err != nil {
				return fmt.Errorf("count %s: %w", name, err)
			}
			mu.Lock()
			totals[name] = n
			mu.Unlock()
			return nil
		})
	}
	count(models.StatTotal, base)
	for _, counter := range statCounters {
		count(counter.name, models.And(base, counter.where))
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard stats failed", zap.String("table", conn.Table()), zap.Error(err))
		return nil, false, wrapQueryError(err)
	}
	for _, counter := range statCounters {
		if counter.adds != "" {
			totals[counter.adds] += totals[counter.name]
		}
	}

	stats := &models.DashboardStats{
		Range:       rangeName,
		Counts:      make([]models.StatCount, 0, len(models.StatOrder)),
		Permission:  breakdown(totals, models.StatApproval, models.StatObjection, models.StatManualHandle),
		Overall:     breakdown(totals, models.StatEscalation, models.StatImportant, models.StatBookcall),
		GeneratedAt: now.UTC(),
	}
	if window != nil {
		from, to := window.Bounds(now)
		stats.From = from
		if !to.IsZero() {
			stats.To = &to
		}
	}
	for _, name := range models.StatOrder {
		stats.Counts = append(stats.Counts, models.StatCount{Name: name, Count: totals[name]})
	}

	if err := s.cache.Set(ctx, key, stats, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("cache dashboard stats failed", zap.Error(err))
	}
	return stats, false, nil
}

// SetConnection follows the current connection so cached counters are
// dropped whenever its table changes.
func (s *StatsService) SetConnection(ctx context.Context, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn == nil {
		return s.subscriber.Close()
	}
	table := conn.Table()
	s.invalidate(ctx, table)
	onEvent := func(evt models.ChangeEvent) {
		s.invalidate(context.Background(), evt.Table)
	}
	onLost := func(err error) {
		s.logger.Warn("stats cache stopped following changes, entries expire by TTL", zap.String("table", table), zap.Error(err))
		s.invalidate(context.Background(), table)
	}
	if err := s.subscriber.Open(ctx, conn.Feed(), table, onEvent, onLost); err != nil {
		s.logger.Warn("stats cache will not follow changes", zap.String("table", table), zap.Error(err))
	}
	return nil
}

// Close releases the change-feed subscription.
func (s *StatsService) Close() error {
	return s.subscriber.Close()
}

func (s *StatsService) invalidate(ctx context.Context, table string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.InvalidateTable(ctx, statsCachePrefix, table); err != nil {
		s.logger.Debug("invalidate dashboard stats failed", zap.String("table", table), zap.Error(err))
	}
}

func (s *StatsService) cacheKey(table string, window *models.TimeWindow) string {
	return TableKey(statsCachePrefix, table, window.Key())
}

func breakdown(totals map[string]int, names ...string) []models.StatCount {
	out := make([]models.StatCount, 0, len(names))
	for _, name := range names {
		if totals[name] > 0 {
			out = append(out, models.StatCount{Name: name, Count: totals[name]})
		}
	}
	return out
}

package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/app"
	"github.com/noah-isme/inbox-manager-api/internal/handler"
	"github.com/noah-isme/inbox-manager-api/internal/middleware"
	"github.com/noah-isme/inbox-manager-api/pkg/config"
	"github.com/noah-isme/inbox-manager-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/inbox-manager-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/inbox-manager-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app.App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))

	metricsHandler := handler.NewMetricsHandler(a.Metrics, a.Connections)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	queues := handler.NewQueueHandler(a.Catalog, a.Views, a.Exports, handler.QueueHandlerConfig{
		SettleTimeout: cfg.Views.SettleTimeout,
	})
	views := handler.NewViewHandler(a.Views)
	records := handler.NewRecordHandler(a.Records)
	dashboard := handler.NewDashboardHandler(a.Stats)
	connection := handler.NewConnectionHandler(a.Connections)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RPS,
		Burst:             cfg.RateLimit.Burst,
	}))
	api.Use(middleware.WithResponseMeta())

	api.GET("/queues", queues.List)
	api.GET("/queues/:queue", queues.Get)
	api.GET("/queues/:queue/stream", queues.Stream)
	api.GET("/queues/:queue/export", queues.Export)

	api.GET("/views/:id", views.Get)
	api.DELETE("/views/:id", views.Close)
	api.POST("/views/:id/refresh", views.Refresh)
	api.POST("/views/:id/dismiss", views.DismissNotice)

	api.POST("/records/:id/decision", records.Decide)
	api.POST("/records/:id/cancel", records.Cancel)
	api.POST("/records/:id/reply", records.Reply)
	api.POST("/records/:id/important-reply", records.RespondImportant)
	api.POST("/records/:id/escalation-reply", records.RespondEscalation)
	api.POST("/records/:id/remove", records.Remove)
	api.POST("/records/:id/restore", records.Restore)
	api.DELETE("/records/:id", records.Delete)

	api.GET("/dashboard/stats", dashboard.Stats)
	api.GET("/metrics/summary", metricsHandler.Summary)

	api.GET("/connection", connection.Get)
	api.PUT("/connection", connection.Connect)
	api.DELETE("/connection", connection.Disconnect)

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/inbox-manager-api/api/swagger"
	"github.com/noah-isme/inbox-manager-api/internal/app"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	"github.com/noah-isme/inbox-manager-api/pkg/cache"
	"github.com/noah-isme/inbox-manager-api/pkg/config"
	"github.com/noah-isme/inbox-manager-api/pkg/logger"
)

// @title Inbox Manager API
// @version 1.0.0
// @description Moderation queues over the AI email pipeline's records, with live updates.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled || cfg.ChangeFeed.Driver == config.ChangeFeedRedis {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	application, err := app.New(app.Deps{
		Cfg:     cfg,
		Logger:  logr,
		Redis:   redisClient,
		Metrics: service.NewMetricsService(),
	})
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}
	application.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, application),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Closing views first ends open SSE streams so Shutdown can drain.
	if err := application.Close(shutdownCtx); err != nil {
		logr.Warn("application close failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown failed", zap.Error(err))
	}
}

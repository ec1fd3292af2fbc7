package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/app"
	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/service"
	"github.com/noah-isme/inbox-manager-api/pkg/cache"
	"github.com/noah-isme/inbox-manager-api/pkg/config"
	"github.com/noah-isme/inbox-manager-api/pkg/logger"
)

func newWatchCmd() *cobra.Command {
	var rng service.TimeRangeRequest
	cmd := &cobra.Command{
		Use:   "watch <queue>",
		Short: "Follow a queue against the configured store until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps := app.Deps{Cfg: cfg, Logger: logr}
			if cfg.ChangeFeed.Driver == config.ChangeFeedRedis {
				client, err := cache.NewRedis(ctx, cfg.Redis)
				if err != nil {
					return fmt.Errorf("connect redis: %w", err)
				}
				defer client.Close() //nolint:errcheck
				deps.Redis = client
			}
			a, err := app.New(deps)
			if err != nil {
				return err
			}
			a.Start(ctx)
			defer func() {
				if err := a.Close(context.Background()); err != nil {
					logr.Warn("close failed", zap.Error(err))
				}
			}()

			session, err := a.Views.Open(ctx, service.OpenViewRequest{Queue: args[0], TimeRangeRequest: rng})
			if err != nil {
				return err
			}
			return follow(ctx, cmd, session)
		},
	}
	cmd.Flags().StringVar(&rng.Range, "range", "", "time range for windowed queues: 24h, 7d, 30d, 90d or custom")
	cmd.Flags().StringVar(&rng.Start, "start", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&rng.End, "end", "", "custom range end (YYYY-MM-DD)")
	return cmd
}

type snapshotSource interface {
	Watch() (<-chan models.ViewSnapshot, func())
}

func follow(ctx context.Context, cmd *cobra.Command, session snapshotSource) error {
	updates, stop := session.Watch()
	defer stop()
	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, open := <-updates:
			if !open {
				return nil
			}
			if outputFormat(cmd) == "json" {
				if err := printJSON(out, snap); err != nil {
					return err
				}
				continue
			}
			printSnapshot(cmd, snap)
		}
	}
}

func printSnapshot(cmd *cobra.Command, snap models.ViewSnapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[%s] %s: %s, %d item(s)\n", time.Now().Format(time.TimeOnly), snap.Queue, snap.Status, len(snap.Items))
	if snap.Status == models.ViewEmpty && snap.EmptyMessage != "" {
		fmt.Fprintf(out, "  %s\n", snap.EmptyMessage)
	}
	if snap.Notice != nil {
		fmt.Fprintf(out, "  ! %s: %s\n", snap.Notice.Title, snap.Notice.Message)
	}
	for _, item := range snap.Items {
		if qi, ok := item.(models.QueueItem); ok {
			fmt.Fprintf(out, "  - %s  %s\n", qi.ID, qi.Title)
			continue
		}
		if rec, ok := item.(models.Record); ok {
			fmt.Fprintf(out, "  - %s\n", rec.ID())
		}
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/app"
	"github.com/portal-sekolah/portal-sekolah/internal/auth"
	"github.com/portal-sekolah/portal-sekolah/internal/calendar"
	jobmetrics "github.com/portal-sekolah/portal-sekolah/internal/jobs"
	"github.com/portal-sekolah/portal-sekolah/internal/notifications"
	"github.com/portal-sekolah/portal-sekolah/internal/platform/cache"
	"github.com/portal-sekolah/portal-sekolah/internal/platform/db"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(pool), logger)
	registry := jobs.NewRegistry(
		announcements.NewRepository(pool),
		calendar.NewRepository(pool),
		notifications.NewRepository(pool),
		authService,
		shared.NewIdempotencyStore(pool),
		jobmetrics.NewMetrics(nil),
		logger,
	)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  registry.Handlers(),
		Cron:      registry.Cron(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

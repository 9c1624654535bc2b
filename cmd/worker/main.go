package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/servicedesk/servicedesk/internal/app"
	jobmetrics "github.com/servicedesk/servicedesk/internal/jobs"
	"github.com/servicedesk/servicedesk/internal/platform/cache"
	"github.com/servicedesk/servicedesk/internal/platform/db"
	"github.com/servicedesk/servicedesk/internal/rbac"
	"github.com/servicedesk/servicedesk/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
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

	if cfg.PermissionCacheBackend != app.CacheBackendRedis {
		logger.Warn("permission warmup writes to redis but the API uses the in-process cache",
			slog.String("backend", cfg.PermissionCacheBackend))
	}

	permissionCache := rbac.NewRedisCache(redisClient, cfg.PermissionCacheTTL, logger)
	warmupJob := jobs.NewPermissionWarmupJob(rbac.NewStore(pool), permissionCache, logger, jobmetrics.NewMetrics(nil))

	warmupTask, err := jobs.NewPermissionWarmupTask(jobs.PermissionWarmupPayload{Limit: cfg.WarmupLimit})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.WarmupCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.WarmupCron, Task: warmupTask})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPermissionWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

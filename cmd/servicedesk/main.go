package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/servicedesk/servicedesk/internal/app"
	"github.com/servicedesk/servicedesk/internal/auth"
	"github.com/servicedesk/servicedesk/internal/observability"
	"github.com/servicedesk/servicedesk/internal/platform/cache"
	"github.com/servicedesk/servicedesk/internal/platform/db"
	"github.com/servicedesk/servicedesk/internal/rbac"
	"github.com/servicedesk/servicedesk/internal/tickets"
	"github.com/servicedesk/servicedesk/internal/users"
	"github.com/servicedesk/servicedesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if cfg.PermissionCacheBackend == app.CacheBackendRedis {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	var permissionCache rbac.Cache = rbac.NewMemoryCache(cfg.PermissionCacheTTL)
	if redisClient != nil {
		permissionCache = rbac.NewRedisCache(redisClient, cfg.PermissionCacheTTL, logger)
	}
	logger.Info("permission cache configured",
		slog.String("backend", cfg.PermissionCacheBackend),
		slog.Duration("ttl", cfg.PermissionCacheTTL))

	roleStore := rbac.NewStore(dbpool)
	resolver := rbac.NewResolver(roleStore, permissionCache, logger).WithRecorder(metrics)
	policy := rbac.NewPolicy(rbac.DefaultPolicies(), logger)
	gate := rbac.NewGate(resolver, policy, logger).WithRecorder(metrics)
	rbacHandler := rbac.NewHandler(logger, rbac.NewService(roleStore, resolver, policy), gate)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool)), gate)

	ticketService := tickets.NewService(tickets.NewRepository(dbpool), resolver, policy)
	ticketsHandler := tickets.NewHandler(logger, ticketService, gate)

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Authenticate:   authenticator.Middleware,
		RBACHandler:    rbacHandler,
		UsersHandler:   usersHandler,
		TicketsHandler: ticketsHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

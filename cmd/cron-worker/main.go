package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shopfloor-backend/internal/bootstrap"
	"github.com/angelmondragon/shopfloor-backend/internal/cron"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	// The lock needs redis even though the API can run without it.
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(logg, "redis", redisClient.Close)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())

	services, err := bootstrap.NewServices(cfg, dbClient, metrics.NewLifecycleMetrics(promRegistry), logg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	jobs, err := buildJobs(cfg, logg, dbClient, services)
	if err != nil {
		return fmt.Errorf("build cron jobs: %w", err)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}

	lockKey := redisClient.LockKey(cfg.Cron.LockKey, cmp.Or(cfg.App.Env, "local"))
	lock, err := cron.NewRedisLock(redisClient, lockKey, cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("create cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(promRegistry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	if addr := cfg.Cron.MetricsAddr; addr != "" {
		listener := metrics.NewListener(addr, promRegistry)
		listener.Start(func(err error) { logg.Error(ctx, "metrics listener failed", err) })
		defer closeQuietly(logg, "metrics listener", listener.Stop)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"jobs": registry.Names(), "lock_key": lockKey}), "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *bootstrap.Services) ([]cron.Job, error) {
	overdue, err := cron.NewOverdueInvoicesJob(cron.OverdueInvoicesJobParams{
		Logger:   logg,
		Invoices: services.Invoices,
	})
	if err != nil {
		return nil, err
	}
	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		Inventory: services.Inventory,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
		BatchSize:  cfg.Cron.OutboxRetentionBatch,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{overdue, lowStock, retention}, nil
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}

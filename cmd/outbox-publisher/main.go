package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/registry"
	"github.com/angelmondragon/shopfloor-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

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
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// run owns every resource so deferred closes fire before main exits.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeQuietly(logg, "pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("build event registry: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(promRegistry),
	})
	if err != nil {
		return fmt.Errorf("create outbox publisher: %w", err)
	}

	if addr := cfg.Outbox.MetricsAddr; addr != "" {
		listener := metrics.NewListener(addr, promRegistry)
		listener.Start(func(err error) { logg.Error(ctx, "metrics listener failed", err) })
		defer closeQuietly(logg, "metrics listener", listener.Stop)
		logg.Info(logg.WithField(ctx, "metrics_addr", addr), "serving publisher metrics")
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}

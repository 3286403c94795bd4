package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfloor-backend/api/controllers"
	"github.com/angelmondragon/shopfloor-backend/api/routes"
	"github.com/angelmondragon/shopfloor-backend/internal/bootstrap"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/env"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/migrate"
	"github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

const (
	serviceKind            = "api"
	defaultShutdownTimeout = 15 * time.Second
)

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

	// Platforms such as Cloud Run inject PORT.
	addr := ":" + cmp.Or(os.Getenv("PORT"), cfg.App.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})

	if err := run(ctx, cfg, logg, addr); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, addr string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	var (
		redisPinger controllers.Pinger
		idempotency redis.IdempotencyStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		defer closeQuietly(logg, "redis", redisClient.Close)
		redisPinger, idempotency = redisClient, redisClient
	} else {
		logg.Warn(ctx, "redis disabled; Idempotency-Key headers will not be enforced")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	services, err := bootstrap.NewServices(cfg, dbClient, metrics.NewLifecycleMetrics(registry), logg)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisPinger, idempotency, registry, routes.Services{
			WorkOrders:   services.WorkOrders,
			Inventory:    services.Inventory,
			TimeTracking: services.TimeTracking,
			Invoices:     services.Invoices,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, logg, server)
}

// serve blocks until the listener fails or ctx ends, then drains in-flight
// requests within the shutdown timeout.
func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Duration("SHOPFLOOR_SHUTDOWN_TIMEOUT", defaultShutdownTimeout))
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if listenErr := <-serveErr; !errors.Is(listenErr, http.ErrServerClosed) {
		err = multierr.Append(err, listenErr)
	}
	return err
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}

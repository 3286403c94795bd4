package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service executes registered jobs on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run runs one cycle immediately and then one per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunCycle runs every job once under the lock. A failing job does not stop
// the others; all failures are returned together.
func (s *Service) RunCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	var errs error
	for _, job := range s.registry.Jobs() {
		if err := s.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	s.logg.Info(ctx, "scheduled run complete")
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := runGuarded(jobCtx, job)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}

// runGuarded turns a job panic into an error so the remaining jobs still run
// and the lock is still released.
func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultRetentionBatch  = 1000
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  time.Duration
	BatchSize  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes delivered outbox rows older than Retention.
// Rows go in batches, one transaction each, so a large backlog never holds a
// long lock on outbox_events.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = defaultRetentionBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.batch)
			deleted = n
			return err
		})
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"cutoff":       cutoff,
				"batches":      batches + 1,
				"rows_deleted": total,
			}), "outbox retention cleanup complete")
			return nil
		}
	}
}

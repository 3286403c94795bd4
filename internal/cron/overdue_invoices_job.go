package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type overdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

type OverdueInvoicesJobParams struct {
	Logger   *logger.Logger
	Invoices overdueMarker
}

// NewOverdueInvoicesJob moves pending invoices past their due date to overdue.
func NewOverdueInvoicesJob(params OverdueInvoicesJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	return &overdueInvoicesJob{logg: params.Logger, invoices: params.Invoices, now: time.Now}, nil
}

type overdueInvoicesJob struct {
	logg     *logger.Logger
	invoices overdueMarker
	now      func() time.Time
}

func (j *overdueInvoicesJob) Name() string { return "overdue-invoices" }

func (j *overdueInvoicesJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	moved, err := j.invoices.MarkOverdue(ctx, now)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":          now,
		"marked_overdue": moved,
	})
	if err != nil {
		return fmt.Errorf("mark overdue invoices after %d moved: %w", moved, err)
	}
	j.logg.Info(logCtx, "overdue invoice sweep complete")
	return nil
}

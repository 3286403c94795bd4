package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

type lowStockSweeper interface {
	SweepLowStock(ctx context.Context) (int, error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	Inventory lowStockSweeper
}

// NewLowStockJob re-announces items sitting at or below their reorder point.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &lowStockJob{logg: params.Logger, inventory: params.Inventory}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	inventory lowStockSweeper
}

func (j *lowStockJob) Name() string { return "low-stock-sweep" }

func (j *lowStockJob) Run(ctx context.Context) error {
	low, err := j.inventory.SweepLowStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock sweep: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "low_stock_items", low), "low stock sweep complete")
	return nil
}

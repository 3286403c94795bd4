// Package bootstrap builds the domain service graph shared by the binaries.
package bootstrap

import (
	"fmt"

	"github.com/angelmondragon/shopfloor-backend/internal/inventory"
	"github.com/angelmondragon/shopfloor-backend/internal/invoices"
	"github.com/angelmondragon/shopfloor-backend/internal/timetracking"
	"github.com/angelmondragon/shopfloor-backend/internal/workorders"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
)

type Services struct {
	Outbox       *outbox.Service
	Inventory    inventory.Service
	WorkOrders   workorders.Service
	TimeTracking timetracking.Service
	Invoices     invoices.Service
}

// NewServices wires repositories, the outbox emitter and the four domain
// services over one database client. m may be nil.
func NewServices(cfg *config.Config, client *db.Client, m *metrics.LifecycleMetrics, logg *logger.Logger) (*Services, error) {
	if cfg == nil || client == nil {
		return nil, fmt.Errorf("config and database client are required")
	}
	conn := client.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	inv, err := inventory.NewService(inventory.NewRepository(conn), client, emitter, m, logg)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	orders, err := workorders.NewService(workorders.ServiceParams{
		Repo:         workorders.NewRepository(conn),
		Tx:           client,
		Inventory:    inv,
		Outbox:       emitter,
		Metrics:      m,
		Logger:       logg,
		NumberPrefix: cfg.Invoicing.WorkOrderPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("work orders service: %w", err)
	}
	timers, err := timetracking.NewService(timetracking.NewRepository(conn), client, logg, nil)
	if err != nil {
		return nil, fmt.Errorf("time tracking service: %w", err)
	}
	billing, err := invoices.NewService(invoices.ServiceParams{
		Repo:         invoices.NewRepository(conn),
		Tx:           client,
		WorkOrders:   orders,
		Parts:        inv,
		Labor:        timers,
		Rates:        invoices.FlatLaborRate(int64(cfg.Invoicing.LaborRateCents)),
		Outbox:       emitter,
		Metrics:      m,
		Logger:       logg,
		NumberPrefix: cfg.Invoicing.NumberPrefix,
		DueIn:        cfg.Invoicing.DueIn(),
	})
	if err != nil {
		return nil, fmt.Errorf("invoices service: %w", err)
	}

	return &Services{
		Outbox:       emitter,
		Inventory:    inv,
		WorkOrders:   orders,
		TimeTracking: timers,
		Invoices:     billing,
	}, nil
}

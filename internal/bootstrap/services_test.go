package bootstrap

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfloor-backend/internal/workorders"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

func TestNewServicesRequiresDatabase(t *testing.T) {
	_, err := NewServices(&config.Config{}, nil, nil, logger.Nop())
	assert.Error(t, err)
}

func TestNewServicesUsesConfiguredPrefixes(t *testing.T) {
	cfg := &config.Config{Invoicing: config.InvoicingConfig{
		LaborRateCents:  9500,
		NetDays:         30,
		NumberPrefix:    "INV",
		WorkOrderPrefix: "JOB",
	}}
	svcs, err := NewServices(cfg, db.FromConn(sqlitetest.Open(t)), nil, logger.Nop())
	require.NoError(t, err)

	wo, err := svcs.WorkOrders.Create(context.Background(), workorders.CreateInput{
		CustomerID:   uuid.New(),
		CustomerName: "Dana Cole",
		Description:  "Alignment",
		Actor:        types.Actor{ID: uuid.New(), Name: "Lee", Role: enums.RoleManager},
	})
	require.NoError(t, err)
	assert.Equal(t, "JOB-1", wo.Number)
}

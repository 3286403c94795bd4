package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

type fixture struct {
	conn  *gorm.DB
	tx    *db.Client
	svc   Service
	actor types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := sqlitetest.Open(t)
	client := db.FromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	svc, err := NewService(NewRepository(conn), client, emitter, nil, nil)
	require.NoError(t, err)
	return &fixture{
		conn:  conn,
		tx:    client,
		svc:   svc,
		actor: types.Actor{ID: uuid.New(), Name: "Alex Tech", Role: enums.RoleTechnician},
	}
}

func (f *fixture) item(t *testing.T, sku, name string, qty, reorder int, price int64) models.InventoryItem {
	t.Helper()
	item := models.InventoryItem{SKU: sku, Name: name, Quantity: qty, ReorderPoint: reorder, UnitPriceCents: price}
	require.NoError(t, f.conn.Create(&item).Error)
	return item
}

func (f *fixture) workOrder(t *testing.T) models.WorkOrder {
	t.Helper()
	wo := models.WorkOrder{
		Number:       "WO-" + uuid.NewString()[:8],
		CustomerID:   uuid.New(),
		CustomerName: "Pat Customer",
		Status:       enums.WorkOrderStatusPending,
		Priority:     enums.PriorityMedium,
		Description:  "Replace brake pads",
	}
	require.NoError(t, f.conn.Create(&wo).Error)
	return wo
}

func (f *fixture) attach(t *testing.T, wo models.WorkOrder, item models.InventoryItem, qty int) {
	t.Helper()
	part := models.WorkOrderPart{
		WorkOrderID:     wo.ID,
		InventoryItemID: item.ID,
		Quantity:        qty,
		UnitPriceCents:  item.UnitPriceCents,
	}
	require.NoError(t, f.conn.Create(&part).Error)
}

func (f *fixture) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, f.conn.First(&item, "id = ?", id).Error)
	return item.Quantity
}

func (f *fixture) run(t *testing.T, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return f.tx.WithTx(context.Background(), fn)
}

func TestReserveDecrementsExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.item(t, "BP-100", "Brake Pad", 5, 0, 1000)
	wo := f.workOrder(t)
	f.attach(t, wo, pads, 2)

	var moved []MovedLine
	err := f.run(t, func(tx *gorm.DB) error {
		var err error
		moved, err = f.svc.Reserve(ctx, tx, wo.ID, f.actor)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []MovedLine{{ItemID: pads.ID, Quantity: 2}}, moved)
	require.Equal(t, 3, f.quantity(t, pads.ID))

	rows, err := f.svc.ListAdjustments(ctx, AdjustmentFilter{WorkOrderID: &wo.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.AdjustmentReserve, rows[0].Type)
	require.Equal(t, 2, rows[0].Quantity)
	require.Equal(t, -2, rows[0].QuantityDelta)
	require.Equal(t, f.actor.Name, rows[0].ActorName)
}

func TestReserveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.item(t, "BP-100", "Brake Pad", 5, 0, 1000)
	rotor := f.item(t, "RT-200", "Rotor", 1, 0, 4500)
	wo := f.workOrder(t)
	f.attach(t, wo, pads, 2)
	f.attach(t, wo, rotor, 2)

	err := f.run(t, func(tx *gorm.DB) error {
		_, err := f.svc.Reserve(ctx, tx, wo.ID, f.actor)
		return err
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	shortages, ok := details["items"].([]Shortage)
	require.True(t, ok)
	require.Len(t, shortages, 1)
	require.Equal(t, rotor.ID, shortages[0].ItemID)
	require.Equal(t, 2, shortages[0].Requested)
	require.Equal(t, 1, shortages[0].Available)

	require.Equal(t, 5, f.quantity(t, pads.ID))
	require.Equal(t, 1, f.quantity(t, rotor.ID))
	var count int64
	require.NoError(t, f.conn.Model(&models.InventoryAdjustment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.item(t, "BP-100", "Brake Pad", 5, 0, 1000)
	wo := f.workOrder(t)
	f.attach(t, wo, pads, 4)

	require.NoError(t, f.run(t, func(tx *gorm.DB) error {
		_, err := f.svc.Reserve(ctx, tx, wo.ID, f.actor)
		return err
	}))
	require.Equal(t, 1, f.quantity(t, pads.ID))

	var released []MovedLine
	require.NoError(t, f.run(t, func(tx *gorm.DB) error {
		var err error
		released, err = f.svc.Release(ctx, tx, wo.ID, f.actor)
		return err
	}))
	require.Equal(t, []MovedLine{{ItemID: pads.ID, Quantity: 4}}, released)
	require.Equal(t, 5, f.quantity(t, pads.ID))

	require.NoError(t, f.run(t, func(tx *gorm.DB) error {
		again, err := f.svc.Release(ctx, tx, wo.ID, f.actor)
		require.Empty(t, again)
		return err
	}))
	require.Equal(t, 5, f.quantity(t, pads.ID))
}

func TestConsumeIsBookkeepingOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.item(t, "BP-100", "Brake Pad", 5, 0, 1000)
	wo := f.workOrder(t)
	f.attach(t, wo, pads, 2)

	require.NoError(t, f.run(t, func(tx *gorm.DB) error {
		if _, err := f.svc.Reserve(ctx, tx, wo.ID, f.actor); err != nil {
			return err
		}
		_, err := f.svc.Consume(ctx, tx, wo.ID, f.actor)
		return err
	}))
	require.Equal(t, 3, f.quantity(t, pads.ID))

	require.NoError(t, f.run(t, func(tx *gorm.DB) error {
		again, err := f.svc.Consume(ctx, tx, wo.ID, f.actor)
		require.Empty(t, again)
		released, rerr := f.svc.Release(ctx, tx, wo.ID, f.actor)
		require.Empty(t, released)
		return multierr.Combine(err, rerr)
	}))
	require.Equal(t, 3, f.quantity(t, pads.ID))

	var lines []ConsumedLine
	require.NoError(t, f.run(t, func(tx *gorm.DB) error {
		var err error
		lines, err = f.svc.ConsumedLines(ctx, tx, wo.ID)
		return err
	}))
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Quantity)
	require.EqualValues(t, 1000, lines[0].UnitPriceCents)
}

func TestReserveOnlyTakesNewlyAttachedParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.item(t, "BP-100", "Brake Pad", 5, 0, 1000)
	fluid := f.item(t, "BF-300", "Brake Fluid", 3, 0, 800)
	wo := f.workOrder(t)
	f.attach(t, wo, pads, 2)

	reserve := func() []MovedLine {
		var moved []MovedLine
		require.NoError(t, f.run(t, func(tx *gorm.DB) error {
			var err error
			moved, err = f.svc.Reserve(ctx, tx, wo.ID, f.actor)
			return err
		}))
		return moved
	}

	reserve()
	f.attach(t, wo, fluid, 1)
	moved := reserve()
	require.Equal(t, []MovedLine{{ItemID: fluid.ID, Quantity: 1}}, moved)
	require.Equal(t, 3, f.quantity(t, pads.ID))
	require.Equal(t, 2, f.quantity(t, fluid.ID))
	require.Empty(t, reserve())
}

func TestReserveFlagsLowStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pads := f.item(t, "BP-100", "Brake Pad", 4, 2, 1000)

	for i := 0; i < 3; i++ {
		wo := f.workOrder(t)
		f.attach(t, wo, pads, 1)
		require.NoError(t, f.run(t, func(tx *gorm.DB) error {
			_, err := f.svc.Reserve(ctx, tx, wo.ID, f.actor)
			return err
		}))
	}

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventInventoryLowStock).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, pads.ID, events[0].AggregateID)
}

func TestReserveRequiresTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reserve(context.Background(), nil, uuid.New(), f.actor)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInternal))
}

func TestCreateItemAndRestock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.CreateItem(ctx, CreateItemInput{SKU: " OF-1 ", Name: "Oil Filter", Quantity: 2, UnitPriceCents: 650})
	require.NoError(t, err)
	require.Equal(t, "OF-1", item.SKU)

	_, err = f.svc.CreateItem(ctx, CreateItemInput{SKU: "OF-1", Name: "Duplicate"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = f.svc.CreateItem(ctx, CreateItemInput{SKU: "X", Name: "Negative", Quantity: -1})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	reason := "supplier delivery"
	restocked, err := f.svc.Restock(ctx, RestockInput{ItemID: item.ID, Quantity: 10, Reason: &reason, Actor: f.actor})
	require.NoError(t, err)
	require.Equal(t, 12, restocked.Quantity)

	rows, err := f.svc.ListAdjustments(ctx, AdjustmentFilter{ItemID: &item.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.AdjustmentRestock, rows[0].Type)
	require.Nil(t, rows[0].WorkOrderID)
	require.Equal(t, 10, rows[0].QuantityDelta)

	_, err = f.svc.Restock(ctx, RestockInput{ItemID: uuid.New(), Quantity: 1, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Restock(ctx, RestockInput{ItemID: item.ID, Quantity: 0, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestListItemsLowStockFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, "A", "Plenty", 10, 2, 100)
	low := f.item(t, "B", "Scarce", 1, 2, 100)

	page, err := f.svc.ListItems(ctx, ListItemsParams{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, low.ID, page.Items[0].ID)

	all, err := f.svc.ListItems(ctx, ListItemsParams{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	require.Empty(t, all.NextCursor)
}

func TestSweepLowStockEmitsOncePerItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, "OIL-5W30", "Oil 5W30", 2, 4, 900)
	f.item(t, "FLT-01", "Oil Filter", 4, 4, 700)
	f.item(t, "WPR-22", "Wiper Blade", 12, 3, 1500)

	low, err := f.svc.SweepLowStock(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, low)

	low, err = f.svc.SweepLowStock(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, low)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInventoryLowStock).Count(&events).Error)
	require.Equal(t, int64(2), events)
}

func TestGetItemNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetItem(context.Background(), uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	conn := sqlitetest.Open(t)
	if _, err := NewService(nil, db.FromConn(conn), outbox.NewService(outbox.NewRepository(conn), nil), nil, nil); err == nil {
		t.Fatalf("expected missing repository to fail")
	}
	if _, err := NewService(NewRepository(conn), nil, outbox.NewService(outbox.NewRepository(conn), nil), nil, nil); err == nil {
		t.Fatalf("expected missing tx runner to fail")
	}
}

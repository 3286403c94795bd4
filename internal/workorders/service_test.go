package workorders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/inventory"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	conn   *gorm.DB
	client *db.Client
	svc    Service
	actor  types.Actor
}

func newFixture(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	conn := sqlitetest.Open(t)
	client := db.FromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	inv, err := inventory.NewService(inventory.NewRepository(conn), client, emitter, nil, nil)
	require.NoError(t, err)

	repo := NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        client,
		Inventory: inv,
		Outbox:    emitter,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &fixture{
		conn:   conn,
		client: client,
		svc:    svc,
		actor:  types.Actor{ID: uuid.New(), Name: "Morgan Lead", Role: enums.RoleManager},
	}
}

func (f *fixture) create(t *testing.T) *models.WorkOrder {
	t.Helper()
	wo, err := f.svc.Create(context.Background(), CreateInput{
		CustomerID:   uuid.New(),
		CustomerName: "Jordan Driver",
		Description:  "Front brakes squeal",
		Actor:        f.actor,
	})
	require.NoError(t, err)
	return wo
}

func (f *fixture) item(t *testing.T, sku string, qty int) models.InventoryItem {
	t.Helper()
	item := models.InventoryItem{SKU: sku, Name: "Brake Pad " + sku, Quantity: qty, UnitPriceCents: 1000}
	require.NoError(t, f.conn.Create(&item).Error)
	return item
}

func (f *fixture) addPart(t *testing.T, wo *models.WorkOrder, item models.InventoryItem, qty int) *models.WorkOrderPart {
	t.Helper()
	part, err := f.svc.AddPart(context.Background(), AddPartInput{
		WorkOrderID:     wo.ID,
		InventoryItemID: item.ID,
		Quantity:        qty,
		Actor:           f.actor,
	})
	require.NoError(t, err)
	return part
}

func (f *fixture) move(t *testing.T, wo *models.WorkOrder, to enums.WorkOrderStatus) (*models.WorkOrder, error) {
	t.Helper()
	return f.svc.Transition(context.Background(), TransitionInput{WorkOrderID: wo.ID, Status: to, Actor: f.actor})
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, f.conn.First(&item, "id = ?", id).Error)
	return item.Quantity
}

func (f *fixture) statusOf(t *testing.T, id uuid.UUID) enums.WorkOrderStatus {
	t.Helper()
	var wo models.WorkOrder
	require.NoError(t, f.conn.First(&wo, "id = ?", id).Error)
	return wo.Status
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateStartsPendingWithNumberAndAudit(t *testing.T) {
	f := newFixture(t, nil)
	first := f.create(t)
	second := f.create(t)

	require.Equal(t, enums.WorkOrderStatusPending, first.Status)
	require.Equal(t, enums.PriorityMedium, first.Priority)
	require.Equal(t, "WO-1", first.Number)
	require.Equal(t, "WO-2", second.Number)
	require.EqualValues(t, 2, f.countEvents(t, enums.EventWorkOrderCreated))

	activity, err := f.svc.ListActivity(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	require.Equal(t, "Work order created", activity[0].Message)
	require.Equal(t, f.actor.Name, activity[0].ActorName)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{CustomerID: uuid.New(), CustomerName: "A", Description: "x", Priority: "urgent", Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, CreateInput{CustomerID: uuid.New(), CustomerName: "A", Description: " ", Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, CreateInput{CustomerID: uuid.New(), CustomerName: "A", Description: "x"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestTransitionMatrixThroughService(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, from := range enums.WorkOrderStatuses() {
		for _, to := range enums.WorkOrderStatuses() {
			wo := f.create(t)
			require.NoError(t, f.conn.Model(&models.WorkOrder{}).Where("id = ?", wo.ID).Update("status", from).Error)

			updated, err := f.svc.Transition(ctx, TransitionInput{WorkOrderID: wo.ID, Status: to, Actor: f.actor})
			if CanTransition(from, to) {
				require.NoError(t, err, "%s -> %s", from, to)
				require.Equal(t, to, updated.Status)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			require.Equal(t, pkgerrors.CodeInvalidTransition, typed.Code())
			details := typed.Details().(map[string]any)
			require.Equal(t, from, details["from"])
			require.Equal(t, to, details["to"])
			require.Equal(t, from, f.statusOf(t, wo.ID))
		}
	}
}

func TestTransitionReservesAndAudits(t *testing.T) {
	f := newFixture(t, nil)
	pads := f.item(t, "BP-1", 5)
	wo := f.create(t)
	f.addPart(t, wo, pads, 2)

	updated, err := f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, enums.WorkOrderStatusInProgress, updated.Status)
	require.NotNil(t, updated.StartedAt)
	require.Equal(t, 3, f.stock(t, pads.ID))
	require.EqualValues(t, 1, f.countEvents(t, enums.EventWorkOrderStatusChanged))

	activity, err := f.svc.ListActivity(context.Background(), wo.ID)
	require.NoError(t, err)
	require.Equal(t, "Status changed to in-progress", activity[len(activity)-1].Message)
}

func TestTransitionRollsBackOnShortage(t *testing.T) {
	f := newFixture(t, nil)
	pads := f.item(t, "BP-1", 1)
	wo := f.create(t)
	f.addPart(t, wo, pads, 2)

	_, err := f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	require.Equal(t, enums.WorkOrderStatusPending, f.statusOf(t, wo.ID))
	require.Equal(t, 1, f.stock(t, pads.ID))
	require.Zero(t, f.countEvents(t, enums.EventWorkOrderStatusChanged))

	activity, err := f.svc.ListActivity(context.Background(), wo.ID)
	require.NoError(t, err)
	for _, row := range activity {
		require.NotEqual(t, "status_changed", row.Action)
	}
}

func TestCancelReleasesReservedStock(t *testing.T) {
	f := newFixture(t, nil)
	pads := f.item(t, "BP-1", 5)
	wo := f.create(t)
	f.addPart(t, wo, pads, 2)

	_, err := f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.NoError(t, err)
	cancelled, err := f.move(t, wo, enums.WorkOrderStatusCancelled)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, 5, f.stock(t, pads.ID))

	_, err = f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestCompleteReopenCompleteKeepsStock(t *testing.T) {
	f := newFixture(t, nil)
	pads := f.item(t, "BP-1", 5)
	wo := f.create(t)
	f.addPart(t, wo, pads, 2)

	for _, to := range []enums.WorkOrderStatus{
		enums.WorkOrderStatusInProgress,
		enums.WorkOrderStatusCompleted,
		enums.WorkOrderStatusInProgress,
		enums.WorkOrderStatusOnHold,
		enums.WorkOrderStatusInProgress,
		enums.WorkOrderStatusCompleted,
	} {
		_, err := f.move(t, wo, to)
		require.NoError(t, err, "move to %s", to)
		require.Equal(t, 3, f.stock(t, pads.ID), "after %s", to)
	}

	var consumed []models.InventoryAdjustment
	require.NoError(t, f.conn.Where("work_order_id = ? AND type = ?", wo.ID, enums.AdjustmentConsume).Find(&consumed).Error)
	require.Len(t, consumed, 1)
	require.Equal(t, 2, consumed[0].Quantity)
}

func TestSubStatusIsValidatedAndCleared(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.create(t)

	wrong := enums.SubStatusWaitingParts
	_, err := f.svc.Transition(ctx, TransitionInput{WorkOrderID: wo.ID, Status: enums.WorkOrderStatusInProgress, SubStatus: &wrong, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	diagnosing := enums.SubStatusDiagnosing
	updated, err := f.svc.Transition(ctx, TransitionInput{WorkOrderID: wo.ID, Status: enums.WorkOrderStatusInProgress, SubStatus: &diagnosing, Actor: f.actor})
	require.NoError(t, err)
	require.Equal(t, diagnosing, *updated.SubStatus)

	held, err := f.move(t, wo, enums.WorkOrderStatusOnHold)
	require.NoError(t, err)
	require.Nil(t, held.SubStatus)

	var stored models.WorkOrder
	require.NoError(t, f.conn.First(&stored, "id = ?", wo.ID).Error)
	require.Nil(t, stored.SubStatus)
}

func TestTransitionValidatesInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.create(t)

	_, err := f.svc.Transition(ctx, TransitionInput{WorkOrderID: wo.ID, Status: "waiting-parts", Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Transition(ctx, TransitionInput{WorkOrderID: wo.ID, Status: enums.WorkOrderStatusInProgress})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.Transition(ctx, TransitionInput{WorkOrderID: uuid.New(), Status: enums.WorkOrderStatusInProgress, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

type failingActivityRepo struct {
	Repository
}

func (r failingActivityRepo) WithTx(tx *gorm.DB) Repository {
	return failingActivityRepo{Repository: r.Repository.WithTx(tx)}
}

func (r failingActivityRepo) CreateActivity(context.Context, *models.WorkOrderActivity) error {
	return errors.New("activity store offline")
}

func TestActivityFailureDoesNotAbortTransition(t *testing.T) {
	f := newFixture(t, func(repo Repository) Repository { return failingActivityRepo{Repository: repo} })
	wo := f.create(t)

	updated, err := f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, enums.WorkOrderStatusInProgress, updated.Status)
	require.Equal(t, enums.WorkOrderStatusInProgress, f.statusOf(t, wo.ID))

	var count int64
	require.NoError(t, f.conn.Model(&models.WorkOrderActivity{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPartsOnlyChangeWhilePendingOrOnHold(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pads := f.item(t, "BP-1", 5)
	rotor := f.item(t, "RT-1", 5)
	wo := f.create(t)
	part := f.addPart(t, wo, pads, 1)

	_, err := f.svc.AddPart(ctx, AddPartInput{WorkOrderID: wo.ID, InventoryItemID: pads.ID, Quantity: 1, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.NoError(t, err)
	_, err = f.svc.AddPart(ctx, AddPartInput{WorkOrderID: wo.ID, InventoryItemID: rotor.ID, Quantity: 1, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = f.move(t, wo, enums.WorkOrderStatusOnHold)
	require.NoError(t, err)
	err = f.svc.RemovePart(ctx, wo.ID, part.ID, f.actor)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	extra := f.addPart(t, wo, rotor, 1)
	require.NoError(t, f.svc.RemovePart(ctx, wo.ID, extra.ID, f.actor))

	parts, err := f.svc.ListParts(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, pads.ID, parts[0].InventoryItemID)
	require.EqualValues(t, 1000, parts[0].UnitPriceCents)
}

type lockCountingRepo struct {
	Repository
	locks *int
}

func (r lockCountingRepo) WithTx(tx *gorm.DB) Repository {
	return lockCountingRepo{Repository: r.Repository.WithTx(tx), locks: r.locks}
}

func (r lockCountingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	*r.locks++
	return r.Repository.FindByIDForUpdate(ctx, id)
}

func TestPartEditsLockTheWorkOrderRow(t *testing.T) {
	var locks int
	f := newFixture(t, func(repo Repository) Repository { return lockCountingRepo{Repository: repo, locks: &locks} })
	ctx := context.Background()
	pads := f.item(t, "BP-9", 5)
	wo := f.create(t)

	part := f.addPart(t, wo, pads, 2)
	require.Equal(t, 1, locks)

	require.NoError(t, f.svc.RemovePart(ctx, wo.ID, part.ID, f.actor))
	require.Equal(t, 2, locks)

	_, err := f.svc.AddPart(ctx, AddPartInput{WorkOrderID: uuid.New(), InventoryItemID: pads.ID, Quantity: 1, Actor: f.actor})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	require.Equal(t, 3, locks)

	_, err = f.move(t, wo, enums.WorkOrderStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, 3, locks, "transitions rely on the conditional update, not the row lock")
}

func TestFindByIDForUpdateReturnsRow(t *testing.T) {
	f := newFixture(t, nil)
	wo := f.create(t)
	repo := NewRepository(f.conn)

	err := f.conn.Transaction(func(tx *gorm.DB) error {
		got, err := repo.WithTx(tx).FindByIDForUpdate(context.Background(), wo.ID)
		require.NoError(t, err)
		require.Equal(t, wo.ID, got.ID)
		require.Equal(t, enums.WorkOrderStatusPending, got.Status)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.FindByIDForUpdate(context.Background(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAssignTechnician(t *testing.T) {
	f := newFixture(t, nil)
	wo := f.create(t)
	techID := uuid.New()

	updated, err := f.svc.AssignTechnician(context.Background(), AssignInput{
		WorkOrderID:    wo.ID,
		TechnicianID:   techID,
		TechnicianName: "Sam Wrench",
		Actor:          f.actor,
	})
	require.NoError(t, err)
	require.Equal(t, techID, *updated.TechnicianID)
	require.EqualValues(t, 1, f.countEvents(t, enums.EventWorkOrderAssigned))

	page, err := f.svc.List(context.Background(), ListParams{ListFilters: ListFilters{TechnicianID: &techID}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	activity, err := f.svc.ListActivity(context.Background(), wo.ID)
	require.NoError(t, err)
	require.Equal(t, "Assigned to Sam Wrench", activity[len(activity)-1].Message)
}

func TestMarkInvoicedOnlyOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	wo := f.create(t)
	first := uuid.New()

	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		return f.svc.MarkInvoiced(ctx, tx, wo.ID, first)
	}))

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		return f.svc.MarkInvoiced(ctx, tx, wo.ID, uuid.New())
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeAlreadyInvoiced, typed.Code())
	require.Equal(t, first, typed.Details().(map[string]any)["invoice_id"])

	stored, err := f.svc.Get(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, first, *stored.InvoiceID)
	require.NotNil(t, stored.InvoicedAt)
}

func TestListRejectsBadCursor(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.List(context.Background(), ListParams{})
	require.NoError(t, err)

	bad := ListParams{}
	bad.Cursor = "%%%"
	_, err = f.svc.List(context.Background(), bad)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

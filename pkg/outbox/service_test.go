package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	aggregateID := uuid.New()
	actorID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventWorkOrderCreated,
			AggregateType: enums.AggregateWorkOrder,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{UserID: actorID, Name: "Dana"},
			Data:          map[string]any{"number": "WO-1"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, actorID, envelope.Actor.UserID)
	require.JSONEq(t, `{"number":"WO-1"}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventInvoiceCreated,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   uuid.New(),
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitIfNoPendingSkipsDuplicates(t *testing.T) {
	conn := sqlitetest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()
	itemID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventInventoryLowStock,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   itemID,
		Data:          map[string]any{"quantity": 1},
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNoPending(ctx, tx, event)
		}))
	}

	rows, err := repo.FetchUnpublished(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkPublished(ctx, rows[0].ID))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.EmitIfNoPending(ctx, tx, event)
	}))

	rows, err = repo.FetchUnpublished(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1, "a new alert is queued once the previous one was published")
}

func TestFetchUnpublishedHonoursAttemptCeiling(t *testing.T) {
	conn := sqlitetest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	row := models.OutboxEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, row))

	rows, err := repo.FetchUnpublished(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkFailed(ctx, rows[0].ID, errors.New("publish timeout")))
	require.NoError(t, repo.MarkFailed(ctx, rows[0].ID, errors.New("publish timeout")))

	rows, err = repo.FetchUnpublished(ctx, 10, 2)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDLQInsertAndMarkDead(t *testing.T) {
	conn := sqlitetest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		EventType:     enums.EventWorkOrderCreated,
		AggregateType: enums.AggregateWorkOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}))
	rows, err := repo.FetchUnpublished(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	cause := errors.New("unsupported event type")
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := dlq.InsertTx(tx, rows[0], enums.OutboxDLQReasonNonRetryable, cause); err != nil {
			return err
		}
		return repo.MarkDeadTx(tx, rows[0].ID, cause)
	}))

	entry, err := dlq.FindByEventID(ctx, rows[0].ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.Equal(t, 1, entry.AttemptCount)

	pending, err := repo.FetchUnpublished(ctx, 10, 0)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.Error(t, dlq.InsertTx(conn, rows[0], enums.OutboxDLQErrorReason("bogus"), cause))
}

func TestEmitRejectsMalformedEvents(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	cases := map[string]DomainEvent{
		"unknown type":      {EventType: "forklift_moved", AggregateType: enums.AggregateWorkOrder, AggregateID: uuid.New()},
		"unknown aggregate": {EventType: enums.EventWorkOrderCreated, AggregateType: "bay", AggregateID: uuid.New()},
		"nil aggregate":     {EventType: enums.EventWorkOrderCreated, AggregateType: enums.AggregateWorkOrder},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, svc.Emit(ctx, conn, event))
		})
	}
	require.ErrorIs(t, svc.Emit(ctx, nil, DomainEvent{}), errTxRequired)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitStampsOccurredAtInUTC(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 3, 4, 9, 30, 0, 0, time.FixedZone("CST", -6*3600))
	svc.now = func() time.Time { return fixed }
	svc.newID = func() string { return "evt-1" }

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Data:          map[string]any{},
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, "evt-1", envelope.EventID)
	require.True(t, fixed.Equal(envelope.OccurredAt))
	require.Equal(t, time.UTC, envelope.OccurredAt.Location())
}

func TestClipUTF8KeepsRunesWhole(t *testing.T) {
	require.Equal(t, "short", clipUTF8("short", 10))
	require.Equal(t, "ab", clipUTF8("ab€", 4))
	require.Equal(t, "ab€", clipUTF8("ab€d", 5))
}

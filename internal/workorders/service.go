package workorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/inventory"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/metrics"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

const workOrderSequence = "work_orders"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the work order lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.WorkOrder, error)
	Transition(ctx context.Context, input TransitionInput) (*models.WorkOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	List(ctx context.Context, params ListParams) (pagination.Page[models.WorkOrder], error)
	AssignTechnician(ctx context.Context, input AssignInput) (*models.WorkOrder, error)
	AddPart(ctx context.Context, input AddPartInput) (*models.WorkOrderPart, error)
	RemovePart(ctx context.Context, workOrderID, partID uuid.UUID, actor types.Actor) error
	ListParts(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPart, error)
	ListActivity(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderActivity, error)
	MarkInvoiced(ctx context.Context, tx *gorm.DB, workOrderID, invoiceID uuid.UUID) error
}

// ServiceParams bundles the dependencies of the work order service.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Inventory    inventory.Coupler
	Outbox       outbox.Emitter
	Metrics      *metrics.LifecycleMetrics
	Logger       *logger.Logger
	NumberPrefix string
	Now          func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Coupler
	outbox    outbox.Emitter
	metrics   *metrics.LifecycleMetrics
	logg      *logger.Logger
	prefix    string
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory coupler required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:      params.Repo,
		tx:        params.Tx,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		prefix:    params.NumberPrefix,
		now:       params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.prefix == "" {
		svc.prefix = "WO"
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.WorkOrder, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if input.CustomerID == uuid.Nil || strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and name are required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	priority, err := enums.ParsePriority(strings.TrimSpace(input.Priority))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid priority")
	}

	var wo *models.WorkOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, err := db.NextNumber(tx, workOrderSequence, s.prefix)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate work order number")
		}
		wo = &models.WorkOrder{
			Number:       number,
			CustomerID:   input.CustomerID,
			CustomerName: strings.TrimSpace(input.CustomerName),
			Status:       enums.WorkOrderStatusPending,
			Priority:     priority,
			Description:  description,
			Notes:        input.Notes,
		}
		if err := repo.Create(ctx, wo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create work order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventWorkOrderCreated,
			AggregateType: enums.AggregateWorkOrder,
			AggregateID:   wo.ID,
			Actor:         input.Actor.Ref(),
			Data: payloads.WorkOrderCreatedEvent{
				WorkOrderID:  wo.ID,
				Number:       wo.Number,
				CustomerID:   wo.CustomerID,
				CustomerName: wo.CustomerName,
				Priority:     wo.Priority,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit work order created")
		}
		s.recordActivity(ctx, tx, wo.ID, input.Actor, "created", "Work order created")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wo, nil
}

// Transition moves a work order through the lifecycle and applies the
// inventory side effect of the edge in the same transaction.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.WorkOrder, error) {
	if input.WorkOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid work order status").
			WithDetails(map[string]any{"status": input.Status})
	}
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if input.SubStatus != nil && !input.SubStatus.AllowedUnder(input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub status does not belong to target status").
			WithDetails(map[string]any{"status": input.Status, "sub_status": *input.SubStatus})
	}

	ctx = s.logg.WithWorkOrderID(ctx, input.WorkOrderID.String())

	var (
		wo   *models.WorkOrder
		from enums.WorkOrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, input.WorkOrderID)
		if err != nil {
			return err
		}
		from = current.Status

		if !CanTransition(from, input.Status) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot move work order from %s to %s", from, input.Status)).
				WithDetails(map[string]any{
					"work_order_id": current.ID,
					"from":          from,
					"to":            input.Status,
				})
		}

		now := s.now().UTC()
		updates := map[string]any{
			"status":     input.Status,
			"sub_status": input.SubStatus,
			"updated_at": now,
		}
		switch input.Status {
		case enums.WorkOrderStatusInProgress:
			if current.StartedAt == nil {
				updates["started_at"] = now
				current.StartedAt = &now
			}
			if from == enums.WorkOrderStatusCompleted {
				updates["completed_at"] = nil
				current.CompletedAt = nil
			}
		case enums.WorkOrderStatusCompleted:
			updates["completed_at"] = now
			current.CompletedAt = &now
		case enums.WorkOrderStatusCancelled:
			updates["cancelled_at"] = now
			current.CancelledAt = &now
		}

		ok, err := repo.UpdateIfStatus(ctx, current.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update work order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "work order changed concurrently").
				WithDetails(map[string]any{"work_order_id": current.ID})
		}
		current.Status = input.Status
		current.SubStatus = input.SubStatus
		current.UpdatedAt = now

		if err := s.applySideEffect(ctx, tx, effectFor(from, input.Status), current.ID, input.Actor); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventWorkOrderStatusChanged,
			AggregateType: enums.AggregateWorkOrder,
			AggregateID:   current.ID,
			Actor:         input.Actor.Ref(),
			OccurredAt:    now,
			Data: payloads.WorkOrderStatusChangedEvent{
				WorkOrderID: current.ID,
				Number:      current.Number,
				From:        from,
				To:          input.Status,
				SubStatus:   input.SubStatus,
				ChangedAt:   now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}

		s.recordActivity(ctx, tx, current.ID, input.Actor, "status_changed", "Status changed to "+input.Status.String())
		wo = current
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncRejected(string(typed.Code()))
		}
		return nil, err
	}

	s.metrics.IncTransition(from.String(), input.Status.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from": from.String(),
		"to":   input.Status.String(),
	}), "work order transitioned")
	return wo, nil
}

func (s *service) applySideEffect(ctx context.Context, tx *gorm.DB, effect sideEffect, workOrderID uuid.UUID, actor types.Actor) error {
	var (
		moved []inventory.MovedLine
		err   error
	)
	switch effect {
	case effectReserve:
		moved, err = s.inventory.Reserve(ctx, tx, workOrderID, actor)
	case effectConsume:
		moved, err = s.inventory.Consume(ctx, tx, workOrderID, actor)
	case effectRelease:
		moved, err = s.inventory.Release(ctx, tx, workOrderID, actor)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if len(moved) > 0 {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"effect": effect.String(),
			"lines":  len(moved),
		}), "inventory updated for work order")
	}
	return nil
}

// recordActivity writes the audit row inside a savepoint. A failure is
// logged and the surrounding transaction carries on.
func (s *service) recordActivity(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor, action, message string) {
	row := &models.WorkOrderActivity{
		WorkOrderID: workOrderID,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      action,
		Message:     message,
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.repo.WithTx(sp).CreateActivity(ctx, row)
	})
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"work_order_id": workOrderID.String(),
			"action":        action,
			"error":         err.Error(),
		}), "work order activity not recorded")
	}
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.WorkOrder, error) {
	wo, err := repo.FindByID(ctx, id)
	return wo, loadError(err, id)
}

// loadForUpdate locks the work order row for the rest of the transaction.
// Part edits use it so a concurrent transition cannot reserve stock against
// a parts list that is still changing.
func (s *service) loadForUpdate(ctx context.Context, repo Repository, id uuid.UUID) (*models.WorkOrder, error) {
	wo, err := repo.FindByIDForUpdate(ctx, id)
	return wo, loadError(err, id)
}

func loadError(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "work order not found").
			WithDetails(map[string]any{"work_order_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load work order")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work order id required")
	}
	return s.load(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.WorkOrder], error) {
	if params.Status != nil && !params.Status.IsValid() {
		return pagination.Page[models.WorkOrder]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.WorkOrder]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, params.ListFilters, params.Params)
	if err != nil {
		return pagination.Page[models.WorkOrder]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list work orders")
	}
	return pagination.Trim(rows, params.Limit, func(wo models.WorkOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: wo.CreatedAt, ID: wo.ID}
	}), nil
}

func (s *service) AssignTechnician(ctx context.Context, input AssignInput) (*models.WorkOrder, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.TechnicianName)
	if input.WorkOrderID == uuid.Nil || input.TechnicianID == uuid.Nil || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work order id, technician id and name are required")
	}

	var wo *models.WorkOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, input.WorkOrderID)
		if err != nil {
			return err
		}
		if current.Status == enums.WorkOrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled work orders cannot be assigned")
		}

		technicianID := input.TechnicianID
		if err := repo.Update(ctx, current.ID, map[string]any{
			"technician_id":   technicianID,
			"technician_name": name,
			"updated_at":      s.now().UTC(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign technician")
		}
		current.TechnicianID = &technicianID
		current.TechnicianName = &name

		event := outbox.DomainEvent{
			EventType:     enums.EventWorkOrderAssigned,
			AggregateType: enums.AggregateWorkOrder,
			AggregateID:   current.ID,
			Actor:         input.Actor.Ref(),
			Data: payloads.WorkOrderAssignedEvent{
				WorkOrderID:    current.ID,
				TechnicianID:   technicianID,
				TechnicianName: name,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit assignment")
		}
		s.recordActivity(ctx, tx, current.ID, input.Actor, "assigned", "Assigned to "+name)
		wo = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wo, nil
}

// AddPart attaches an inventory line. Stock is taken later, when the order
// goes in progress.
func (s *service) AddPart(ctx context.Context, input AddPartInput) (*models.WorkOrderPart, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if input.WorkOrderID == uuid.Nil || input.InventoryItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work order id and inventory item id are required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var part *models.WorkOrderPart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wo, err := s.loadForUpdate(ctx, repo, input.WorkOrderID)
		if err != nil {
			return err
		}
		if !partsEditable(wo.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "parts can only change while pending or on hold").
				WithDetails(map[string]any{"work_order_id": wo.ID, "status": wo.Status})
		}
		item, err := repo.FindItem(ctx, input.InventoryItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}

		part = &models.WorkOrderPart{
			WorkOrderID:     wo.ID,
			InventoryItemID: item.ID,
			Quantity:        input.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
		}
		if err := repo.CreatePart(ctx, part); err != nil {
			if db.IsUniqueViolation(err, "ux_work_order_parts_item") {
				return pkgerrors.New(pkgerrors.CodeConflict, "item already attached to work order").
					WithDetails(map[string]any{"work_order_id": wo.ID, "item_id": item.ID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach part")
		}
		s.recordActivity(ctx, tx, wo.ID, input.Actor, "part_added",
			fmt.Sprintf("Added %d x %s", input.Quantity, item.Name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

func (s *service) RemovePart(ctx context.Context, workOrderID, partID uuid.UUID, actor types.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if workOrderID == uuid.Nil || partID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "work order id and part id are required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wo, err := s.loadForUpdate(ctx, repo, workOrderID)
		if err != nil {
			return err
		}
		if !partsEditable(wo.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "parts can only change while pending or on hold").
				WithDetails(map[string]any{"work_order_id": wo.ID, "status": wo.Status})
		}
		part, err := repo.FindPart(ctx, workOrderID, partID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part")
		}
		held, err := repo.HeldQuantity(ctx, workOrderID, part.InventoryItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if held > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "part has stock reserved for this work order").
				WithDetails(map[string]any{"part_id": part.ID, "reserved": held})
		}
		if err := repo.DeletePart(ctx, part.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove part")
		}
		s.recordActivity(ctx, tx, wo.ID, actor, "part_removed", "Removed part "+part.InventoryItemID.String())
		return nil
	})
}

func (s *service) ListParts(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPart, error) {
	if _, err := s.Get(ctx, workOrderID); err != nil {
		return nil, err
	}
	parts, err := s.repo.ListParts(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list parts")
	}
	return parts, nil
}

func (s *service) ListActivity(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderActivity, error) {
	if _, err := s.Get(ctx, workOrderID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListActivity(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activity")
	}
	return rows, nil
}

// MarkInvoiced links an invoice to the work order inside the caller's
// transaction. A work order is invoiced at most once.
func (s *service) MarkInvoiced(ctx context.Context, tx *gorm.DB, workOrderID, invoiceID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required to link invoice")
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.MarkInvoiced(ctx, workOrderID, invoiceID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link invoice")
	}
	if ok {
		return nil
	}
	wo, err := s.load(ctx, repo, workOrderID)
	if err != nil {
		return err
	}
	return AlreadyInvoiced(wo)
}

// AlreadyInvoiced builds the error returned when a work order carries an invoice.
func AlreadyInvoiced(wo *models.WorkOrder) error {
	details := map[string]any{"work_order_id": wo.ID}
	if wo.InvoiceID != nil {
		details["invoice_id"] = *wo.InvoiceID
	}
	return pkgerrors.New(pkgerrors.CodeAlreadyInvoiced, "work order "+wo.Number+" is already invoiced").
		WithDetails(details)
}

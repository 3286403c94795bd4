package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/internal/inventory"
	"github.com/angelmondragon/shopfloor-backend/internal/timetracking"
	"github.com/angelmondragon/shopfloor-backend/internal/workorders"
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

const (
	invoiceSequence      = "invoices"
	activeWorkOrderIndex = "ux_invoices_active_work_order"
	overdueBatchSize     = 100
	defaultInvoicePrefix = "INV"
	laborLineNamePrefix  = "Labor - "
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PartsSource lists the parts a work order consumed.
type PartsSource interface {
	ConsumedLines(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]inventory.ConsumedLine, error)
}

// LaborSource lists billable minutes per employee on a work order.
type LaborSource interface {
	BillableByEmployee(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]timetracking.EmployeeMinutes, error)
}

// WorkOrderLinker records the invoice on its work order.
type WorkOrderLinker interface {
	MarkInvoiced(ctx context.Context, tx *gorm.DB, workOrderID, invoiceID uuid.UUID) error
}

// Service assembles invoices and drives their status.
type Service interface {
	CreateFromWorkOrder(ctx context.Context, workOrderID uuid.UUID, taxRate decimal.Decimal, actor types.Actor) (*models.Invoice, error)
	CreateStandalone(ctx context.Context, input StandaloneInput) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, params ListParams) (pagination.Page[models.Invoice], error)
	Send(ctx context.Context, id uuid.UUID, actor types.Actor) (*models.Invoice, error)
	MarkPaid(ctx context.Context, input PaymentInput) (*models.Invoice, error)
	Cancel(ctx context.Context, id uuid.UUID, actor types.Actor) (*models.Invoice, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	WorkOrders   WorkOrderLinker
	Parts        PartsSource
	Labor        LaborSource
	Rates        LaborRateProvider
	Outbox       outbox.Emitter
	Metrics      *metrics.LifecycleMetrics
	Logger       *logger.Logger
	NumberPrefix string
	DueIn        time.Duration
	Now          func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	workOrders WorkOrderLinker
	parts      PartsSource
	labor      LaborSource
	rates      LaborRateProvider
	outbox     outbox.Emitter
	metrics    *metrics.LifecycleMetrics
	logg       *logger.Logger
	prefix     string
	dueIn      time.Duration
	now        func() time.Time

	overdueBatch int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.WorkOrders == nil {
		return nil, fmt.Errorf("work order linker required")
	}
	if params.Parts == nil || params.Labor == nil {
		return nil, fmt.Errorf("parts and labor sources required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("labor rate provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:       params.Repo,
		tx:         params.Tx,
		workOrders: params.WorkOrders,
		parts:      params.Parts,
		labor:      params.Labor,
		rates:      params.Rates,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
		prefix:     params.NumberPrefix,
		dueIn:      params.DueIn,
		now:        params.Now,

		overdueBatch: overdueBatchSize,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.prefix == "" {
		svc.prefix = defaultInvoicePrefix
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// CreateFromWorkOrder bills the consumed parts and billable labor of a work
// order. A work order that already carries an invoice yields the existing
// invoice together with an ALREADY_INVOICED error.
func (s *service) CreateFromWorkOrder(ctx context.Context, workOrderID uuid.UUID, taxRate decimal.Decimal, actor types.Actor) (*models.Invoice, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if workOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "work order id required")
	}
	if !ValidTaxRate(taxRate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be between 0 and 1 with at most four decimal places").
			WithDetails(map[string]any{"tax_rate": taxRate.String()})
	}

	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wo, err := repo.FindWorkOrder(ctx, workOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "work order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load work order")
		}
		if wo.InvoiceID != nil {
			return workorders.AlreadyInvoiced(wo)
		}

		lines, err := s.workOrderLines(ctx, tx, wo.ID)
		if err != nil {
			return err
		}
		woID := wo.ID
		invoice, err = s.insert(ctx, tx, &models.Invoice{
			WorkOrderID:  &woID,
			CustomerID:   wo.CustomerID,
			CustomerName: wo.CustomerName,
			TaxRate:      taxRate,
			LineItems:    lines,
		}, actor)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeConflict) {
				return workorders.AlreadyInvoiced(wo)
			}
			return err
		}
		return s.workOrders.MarkInvoiced(ctx, tx, wo.ID, invoice.ID)
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeAlreadyInvoiced) {
			return s.existingInvoice(ctx, workOrderID), err
		}
		return nil, err
	}

	s.metrics.IncInvoiceCreated()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"work_order_id": workOrderID.String(),
		"invoice_id":    invoice.ID.String(),
		"number":        invoice.Number,
		"total_cents":   invoice.TotalCents,
	}), "invoice created from work order")
	return invoice, nil
}

func (s *service) workOrderLines(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]models.InvoiceLineItem, error) {
	parts, err := s.parts.ConsumedLines(ctx, tx, workOrderID)
	if err != nil {
		return nil, err
	}
	labor, err := s.labor.BillableByEmployee(ctx, tx, workOrderID)
	if err != nil {
		return nil, err
	}

	lines := make([]models.InvoiceLineItem, 0, len(parts)+len(labor))
	for _, part := range parts {
		itemID := part.ItemID
		qty := decimal.NewFromInt(int64(part.Quantity))
		lines = append(lines, models.InvoiceLineItem{
			Kind:            enums.LineItemPart,
			Name:            part.Name,
			Quantity:        qty,
			UnitPriceCents:  part.UnitPriceCents,
			TotalCents:      LineTotal(qty, part.UnitPriceCents),
			InventoryItemID: &itemID,
		})
	}
	for _, row := range labor {
		rate, err := s.rates.LaborRateCents(ctx, row.EmployeeID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve labor rate").
				WithDetails(map[string]any{"employee_id": row.EmployeeID})
		}
		employeeID := row.EmployeeID
		hours := LaborHours(row.Minutes)
		lines = append(lines, models.InvoiceLineItem{
			Kind:           enums.LineItemLabor,
			Name:           laborLineNamePrefix + row.EmployeeName,
			Quantity:       hours,
			UnitPriceCents: rate,
			TotalCents:     LineTotal(hours, rate),
			EmployeeID:     &employeeID,
		})
	}
	return lines, nil
}

func (s *service) existingInvoice(ctx context.Context, workOrderID uuid.UUID) *models.Invoice {
	wo, err := s.repo.FindWorkOrder(ctx, workOrderID)
	if err != nil || wo.InvoiceID == nil {
		return nil
	}
	invoice, err := s.repo.FindByID(ctx, *wo.InvoiceID)
	if err != nil {
		s.logg.Warn(s.logg.WithWorkOrderID(ctx, workOrderID.String()), "existing invoice could not be loaded")
		return nil
	}
	return invoice
}

// CreateStandalone bills caller supplied lines without a work order.
func (s *service) CreateStandalone(ctx context.Context, input StandaloneInput) (*models.Invoice, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.CustomerName)
	if input.CustomerID == uuid.Nil || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and name are required")
	}
	if !ValidTaxRate(input.TaxRate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be between 0 and 1 with at most four decimal places")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}

	lines := make([]models.InvoiceLineItem, 0, len(input.Lines))
	for i, line := range input.Lines {
		kind := line.Kind
		if kind == "" {
			kind = enums.LineItemCustom
		}
		lineName := strings.TrimSpace(line.Name)
		switch {
		case !kind.IsValid():
			return nil, lineError(i, "invalid line kind")
		case lineName == "":
			return nil, lineError(i, "line name is required")
		case !ValidQuantity(line.Quantity):
			return nil, lineError(i, "line quantity must be positive with at most two decimal places")
		case line.UnitPriceCents < 0:
			return nil, lineError(i, "line unit price must not be negative")
		}
		lines = append(lines, models.InvoiceLineItem{
			Kind:           kind,
			Name:           lineName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     LineTotal(line.Quantity, line.UnitPriceCents),
		})
	}

	var invoice *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoice, err = s.insert(ctx, tx, &models.Invoice{
			CustomerID:   input.CustomerID,
			CustomerName: name,
			TaxRate:      input.TaxRate,
			Notes:        input.Notes,
			LineItems:    lines,
		}, input.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncInvoiceCreated()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"invoice_id":  invoice.ID.String(),
		"number":      invoice.Number,
		"total_cents": invoice.TotalCents,
	}), "standalone invoice created")
	return invoice, nil
}

func lineError(index int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"line": index})
}

// insert numbers, totals and stores a draft invoice and emits invoice_created.
func (s *service) insert(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, actor types.Actor) (*models.Invoice, error) {
	number, err := db.NextNumber(tx, invoiceSequence, s.prefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate invoice number")
	}
	for i := range invoice.LineItems {
		invoice.LineItems[i].Position = i + 1
	}
	totals := ComputeTotals(invoice.LineItems, invoice.TaxRate)
	invoice.Number = number
	invoice.Status = enums.InvoiceStatusDraft
	invoice.SubtotalCents = totals.SubtotalCents
	invoice.TaxCents = totals.TaxCents
	invoice.TotalCents = totals.TotalCents
	if s.dueIn > 0 {
		due := s.now().UTC().Add(s.dueIn)
		invoice.DueAt = &due
	}

	if err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
		if db.IsUniqueViolation(err, activeWorkOrderIndex) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "work order already has an invoice")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventInvoiceCreated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Actor:         actor.Ref(),
		Data: payloads.InvoiceCreatedEvent{
			InvoiceID:   invoice.ID,
			Number:      invoice.Number,
			WorkOrderID: invoice.WorkOrderID,
			CustomerID:  invoice.CustomerID,
			TotalCents:  invoice.TotalCents,
			DueAt:       invoice.DueAt,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice created")
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.load(ctx, s.repo, id)
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Invoice], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Invoice]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return pagination.Page[models.Invoice]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice status")
	}
	rows, err := s.repo.List(ctx, params.Status, params.Params)
	if err != nil {
		return pagination.Page[models.Invoice]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return pagination.Trim(rows, params.Limit, func(inv models.Invoice) pagination.Cursor {
		return pagination.Cursor{CreatedAt: inv.CreatedAt, ID: inv.ID}
	}), nil
}

func (s *service) Send(ctx context.Context, id uuid.UUID, actor types.Actor) (*models.Invoice, error) {
	return s.move(ctx, id, enums.InvoiceStatusPending, actor, func(now time.Time, updates map[string]any) {
		updates["sent_at"] = now
	})
}

func (s *service) MarkPaid(ctx context.Context, input PaymentInput) (*models.Invoice, error) {
	method := strings.TrimSpace(input.Method)
	if method == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	return s.move(ctx, input.InvoiceID, enums.InvoiceStatusPaid, input.Actor, func(now time.Time, updates map[string]any) {
		updates["paid_at"] = now
		updates["payment_method"] = method
		if input.Reference != nil {
			updates["payment_reference"] = strings.TrimSpace(*input.Reference)
		}
	})
}

// Cancel voids an invoice. The work order keeps its link so it cannot be
// billed twice.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor types.Actor) (*models.Invoice, error) {
	return s.move(ctx, id, enums.InvoiceStatusCancelled, actor, func(now time.Time, updates map[string]any) {
		updates["cancelled_at"] = now
	})
}

func (s *service) move(ctx context.Context, id uuid.UUID, to enums.InvoiceStatus, actor types.Actor, extra func(now time.Time, updates map[string]any)) (*models.Invoice, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	var (
		invoice *models.Invoice
		from    enums.InvoiceStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		from = current.Status
		if err := s.changeStatus(ctx, tx, repo, current, to, actor.Ref(), extra); err != nil {
			return err
		}
		invoice, err = s.load(ctx, repo, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"invoice_id": id.String(),
		"from":       from.String(),
		"to":         to.String(),
	}), "invoice status changed")
	return invoice, nil
}

func (s *service) changeStatus(ctx context.Context, tx *gorm.DB, repo Repository, current *models.Invoice, to enums.InvoiceStatus, actor *outbox.ActorRef, extra func(now time.Time, updates map[string]any)) error {
	if !CanTransition(current.Status, to) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("invoice cannot move from %s to %s", current.Status, to)).
			WithDetails(map[string]any{
				"invoice_id": current.ID,
				"from":       current.Status,
				"to":         to,
			})
	}

	now := s.now().UTC()
	updates := map[string]any{"status": to, "updated_at": now}
	if extra != nil {
		extra(now, updates)
	}
	ok, err := repo.UpdateIfStatus(ctx, current.ID, current.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice changed concurrently").
			WithDetails(map[string]any{"invoice_id": current.ID})
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventInvoiceStatusChanged,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   current.ID,
		Actor:         actor,
		Data: payloads.InvoiceStatusChangedEvent{
			InvoiceID: current.ID,
			Number:    current.Number,
			From:      current.Status,
			To:        to,
			ChangedAt: now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice status change")
	}
	return nil
}

// MarkOverdue moves pending invoices past their due date to overdue and
// returns how many moved. Each invoice is updated in its own transaction; one
// that fails is reported and the scan continues past it.
func (s *service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	var (
		moved int
		errs  error
		after *PastDueCursor
	)
	for {
		rows, err := s.repo.ListPastDue(ctx, now, after, s.overdueBatch)
		if err != nil {
			return moved, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list past due invoices"))
		}
		for i := range rows {
			current := rows[i]
			err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				return s.changeStatus(ctx, tx, s.repo.WithTx(tx), &current, enums.InvoiceStatusOverdue, nil, nil)
			})
			if err != nil {
				if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
					continue
				}
				errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", current.Number, err))
				continue
			}
			moved++
		}
		if len(rows) < s.overdueBatch {
			break
		}
		last := rows[len(rows)-1]
		after = &PastDueCursor{DueAt: *last.DueAt, ID: last.ID}
	}

	if moved > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", moved), "invoices marked overdue")
	}
	return moved, errs
}

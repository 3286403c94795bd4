package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Coupler is the slice of the service the work order lifecycle drives. All
// three run inside the caller's transaction.
type Coupler interface {
	Reserve(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor) ([]MovedLine, error)
	Consume(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor) ([]MovedLine, error)
	Release(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor) ([]MovedLine, error)
}

// Service couples stock levels to work orders and keeps the adjustment ledger.
type Service interface {
	Coupler
	ConsumedLines(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]ConsumedLine, error)
	CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context, params ListItemsParams) (pagination.Page[models.InventoryItem], error)
	Restock(ctx context.Context, input RestockInput) (*models.InventoryItem, error)
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]models.InventoryAdjustment, error)
	SweepLowStock(ctx context.Context) (int, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.LifecycleMetrics
	logg    *logger.Logger
}

// NewService builds the inventory service. Metrics and logger may be nil.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LifecycleMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  emitter,
		metrics: m,
		logg:    logg,
	}, nil
}

// Reserve takes stock for every part line that is not already held by the
// work order. Any shortage fails the whole call; the caller rolls back.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor) ([]MovedLine, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for reservation")
	}
	repo := s.repo.WithTx(tx)

	parts, err := repo.WorkOrderParts(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load work order parts")
	}
	ledger, err := repo.LedgerByItem(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation ledger")
	}

	// Lock rows in a stable order so concurrent reservations cannot deadlock.
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].InventoryItemID.String() < parts[j].InventoryItemID.String()
	})

	var (
		moved   []MovedLine
		short   []uuid.UUID
		needFor = map[uuid.UUID]int{}
	)
	for _, part := range parts {
		need := part.Quantity - ledger[part.InventoryItemID].Held()
		if need <= 0 {
			continue
		}
		ok, err := repo.DecrementIfAvailable(ctx, part.InventoryItemID, need)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve inventory")
		}
		if !ok {
			short = append(short, part.InventoryItemID)
			needFor[part.InventoryItemID] = need
			continue
		}
		moved = append(moved, MovedLine{ItemID: part.InventoryItemID, Quantity: need})
	}

	if len(short) > 0 {
		return nil, s.shortageError(ctx, repo, workOrderID, short, needFor)
	}
	if len(moved) == 0 {
		return nil, nil
	}

	if err := repo.InsertAdjustments(ctx, ledgerRows(workOrderID, enums.AdjustmentReserve, moved, actor)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
	}
	if err := s.flagLowStock(ctx, tx, repo, moved, actor); err != nil {
		return nil, err
	}
	return moved, nil
}

func (s *service) shortageError(ctx context.Context, repo Repository, workOrderID uuid.UUID, short []uuid.UUID, needFor map[uuid.UUID]int) error {
	items, err := repo.FindItems(ctx, short)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load short items")
	}
	byID := make(map[uuid.UUID]models.InventoryItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	shortages := make([]Shortage, 0, len(short))
	names := make([]string, 0, len(short))
	for _, id := range short {
		item, ok := byID[id]
		shortage := Shortage{ItemID: id, Requested: needFor[id]}
		if ok {
			shortage.SKU = item.SKU
			shortage.Name = item.Name
			shortage.Available = item.Quantity
		}
		shortages = append(shortages, shortage)
		names = append(names, shortage.Name)
		s.metrics.IncStockShortage(shortage.SKU)
	}

	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+strings.Join(names, ", ")).
		WithDetails(map[string]any{
			"work_order_id": workOrderID,
			"items":         shortages,
		})
}

func (s *service) flagLowStock(ctx context.Context, tx *gorm.DB, repo Repository, moved []MovedLine, actor types.Actor) error {
	ids := make([]uuid.UUID, len(moved))
	for i, line := range moved {
		ids[i] = line.ItemID
	}
	items, err := repo.FindItems(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reserved items")
	}
	for _, item := range items {
		if !item.LowStock() {
			continue
		}
		if err := s.outbox.EmitIfNoPending(ctx, tx, lowStockEvent(item, actor.Ref())); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit low stock event")
		}
	}
	return nil
}

func lowStockEvent(item models.InventoryItem, actor *outbox.ActorRef) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventInventoryLowStock,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		Actor:         actor,
		Data: payloads.InventoryLowStockEvent{
			InventoryItemID: item.ID,
			SKU:             item.SKU,
			Name:            item.Name,
			Quantity:        item.Quantity,
			ReorderPoint:    item.ReorderPoint,
		},
	}
}

// SweepLowStock re-announces every item at or below its reorder point that
// has no unpublished low stock event, and returns how many items are low.
func (s *service) SweepLowStock(ctx context.Context) (int, error) {
	items, err := s.repo.LowStockItems(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock items")
	}
	if len(items) == 0 {
		return 0, nil
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			if err := s.outbox.EmitIfNoPending(ctx, tx, lowStockEvent(item, nil)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit low stock event").
					WithDetails(map[string]any{"item_id": item.ID})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Consume books the outstanding reservation as used. Stock was already
// removed at reservation time, so quantities do not change.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor) ([]MovedLine, error) {
	return s.settle(ctx, tx, workOrderID, actor, enums.AdjustmentConsume)
}

// Release returns the outstanding reservation to stock. Consumed units stay
// consumed and a second release finds nothing to return.
func (s *service) Release(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor) ([]MovedLine, error) {
	return s.settle(ctx, tx, workOrderID, actor, enums.AdjustmentReturn)
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID, actor types.Actor, kind enums.AdjustmentType) ([]MovedLine, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for inventory "+kind.String())
	}
	repo := s.repo.WithTx(tx)

	ledger, err := repo.LedgerByItem(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation ledger")
	}

	moved := make([]MovedLine, 0, len(ledger))
	for itemID, totals := range ledger {
		if qty := totals.Outstanding(); qty > 0 {
			moved = append(moved, MovedLine{ItemID: itemID, Quantity: qty})
		}
	}
	if len(moved) == 0 {
		return nil, nil
	}
	sort.Slice(moved, func(i, j int) bool {
		return moved[i].ItemID.String() < moved[j].ItemID.String()
	})

	if kind == enums.AdjustmentReturn {
		for _, line := range moved {
			if err := repo.Increment(ctx, line.ItemID, line.Quantity); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return inventory")
			}
		}
	}
	if err := repo.InsertAdjustments(ctx, ledgerRows(workOrderID, kind, moved, actor)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record "+kind.String())
	}
	return moved, nil
}

// ConsumedLines lists what the work order used, priced with the snapshot
// taken when the part was attached.
func (s *service) ConsumedLines(ctx context.Context, tx *gorm.DB, workOrderID uuid.UUID) ([]ConsumedLine, error) {
	repo := s.repo.WithTx(tx)

	ledger, err := repo.LedgerByItem(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consumption ledger")
	}
	ids := make([]uuid.UUID, 0, len(ledger))
	for itemID, totals := range ledger {
		if totals.Consumed > 0 {
			ids = append(ids, itemID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := repo.FindItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consumed items")
	}
	parts, err := repo.WorkOrderParts(ctx, workOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load work order parts")
	}
	snapshot := make(map[uuid.UUID]int64, len(parts))
	for _, part := range parts {
		snapshot[part.InventoryItemID] = part.UnitPriceCents
	}

	lines := make([]ConsumedLine, 0, len(items))
	for _, item := range items {
		price, ok := snapshot[item.ID]
		if !ok {
			price = item.UnitPriceCents
		}
		lines = append(lines, ConsumedLine{
			ItemID:         item.ID,
			SKU:            item.SKU,
			Name:           item.Name,
			Quantity:       ledger[item.ID].Consumed,
			UnitPriceCents: price,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if input.Quantity < 0 || input.ReorderPoint < 0 || input.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity, reorder point and price must not be negative")
	}

	item := &models.InventoryItem{
		SKU:            sku,
		Name:           name,
		Quantity:       input.Quantity,
		ReorderPoint:   input.ReorderPoint,
		UnitPriceCents: input.UnitPriceCents,
		Supplier:       input.Supplier,
		Location:       input.Location,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateItem(ctx, item)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists").
				WithDetails(map[string]any{"sku": sku})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, params ListItemsParams) (pagination.Page[models.InventoryItem], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.InventoryItem]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListItems(ctx, params.LowStockOnly, params.Params)
	if err != nil {
		return pagination.Page[models.InventoryItem]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory items")
	}
	return pagination.Trim(rows, params.Limit, func(item models.InventoryItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
	}), nil
}

// Restock is the manual positive adjustment outside any work order.
func (s *service) Restock(ctx context.Context, input RestockInput) (*models.InventoryItem, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}

	var item *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Increment(ctx, input.ItemID, input.Quantity); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock inventory")
		}
		row := models.InventoryAdjustment{
			InventoryItemID: input.ItemID,
			Type:            enums.AdjustmentRestock,
			Quantity:        input.Quantity,
			QuantityDelta:   enums.AdjustmentRestock.StockDelta(input.Quantity),
			ActorID:         input.Actor.ID,
			ActorName:       input.Actor.Name,
			Reason:          input.Reason,
		}
		if err := repo.InsertAdjustments(ctx, []models.InventoryAdjustment{row}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record restock")
		}
		loaded, err := repo.FindItem(ctx, input.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory item")
		}
		item = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"inventory_item_id": item.ID.String(),
		"quantity":          input.Quantity,
	}), "inventory restocked")
	return item, nil
}

func (s *service) ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]models.InventoryAdjustment, error) {
	if filter.ItemID == nil && filter.WorkOrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id or work order id required")
	}
	rows, err := s.repo.ListAdjustments(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory adjustments")
	}
	return rows, nil
}

func ledgerRows(workOrderID uuid.UUID, kind enums.AdjustmentType, lines []MovedLine, actor types.Actor) []models.InventoryAdjustment {
	woID := workOrderID
	rows := make([]models.InventoryAdjustment, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, models.InventoryAdjustment{
			WorkOrderID:     &woID,
			InventoryItemID: line.ItemID,
			Type:            kind,
			Quantity:        line.Quantity,
			QuantityDelta:   kind.StockDelta(line.Quantity),
			ActorID:         actor.ID,
			ActorName:       actor.Name,
		})
	}
	return rows
}

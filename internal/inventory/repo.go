package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

// Repository defines persistence operations for stock and its ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateItem(ctx context.Context, item *models.InventoryItem) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	FindItems(ctx context.Context, ids []uuid.UUID) ([]models.InventoryItem, error)
	ListItems(ctx context.Context, lowStockOnly bool, params pagination.Params) ([]models.InventoryItem, error)
	LowStockItems(ctx context.Context) ([]models.InventoryItem, error)
	DecrementIfAvailable(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, id uuid.UUID, qty int) error
	InsertAdjustments(ctx context.Context, rows []models.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]models.InventoryAdjustment, error)
	LedgerByItem(ctx context.Context, workOrderID uuid.UUID) (map[uuid.UUID]LedgerTotals, error)
	WorkOrderParts(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPart, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItems(ctx context.Context, ids []uuid.UUID) ([]models.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListItems(ctx context.Context, lowStockOnly bool, params pagination.Params) ([]models.InventoryItem, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryItem{})
	if lowStockOnly {
		query = query.Where("quantity <= reorder_point")
	}
	query, err := pagination.Keyset(query, params)
	if err != nil {
		return nil, err
	}
	var items []models.InventoryItem
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) LowStockItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("quantity <= reorder_point").
		Order("sku ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DecrementIfAvailable removes qty units in a single conditional statement.
// It reports false when the row does not hold enough stock.
func (r *repository) DecrementIfAvailable(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, id uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) InsertAdjustments(ctx context.Context, rows []models.InventoryAdjustment) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]models.InventoryAdjustment, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryAdjustment{})
	if filter.ItemID != nil {
		query = query.Where("inventory_item_id = ?", *filter.ItemID)
	}
	if filter.WorkOrderID != nil {
		query = query.Where("work_order_id = ?", *filter.WorkOrderID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	var rows []models.InventoryAdjustment
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type ledgerRow struct {
	InventoryItemID uuid.UUID
	Reserved        int
	Returned        int
	Consumed        int
}

// LedgerByItem sums the work order's adjustments per item.
func (r *repository) LedgerByItem(ctx context.Context, workOrderID uuid.UUID) (map[uuid.UUID]LedgerTotals, error) {
	var rows []ledgerRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT inventory_item_id,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) AS reserved,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) AS returned,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) AS consumed
		FROM inventory_adjustments
		WHERE work_order_id = ?
		GROUP BY inventory_item_id
	`, string(enums.AdjustmentReserve), string(enums.AdjustmentReturn), string(enums.AdjustmentConsume), workOrderID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]LedgerTotals, len(rows))
	for _, row := range rows {
		out[row.InventoryItemID] = LedgerTotals{
			Reserved: row.Reserved,
			Returned: row.Returned,
			Consumed: row.Consumed,
		}
	}
	return out, nil
}

func (r *repository) WorkOrderParts(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPart, error) {
	var parts []models.WorkOrderPart
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("inventory_item_id ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

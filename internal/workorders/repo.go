package workorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

// Repository defines persistence operations for work orders, their parts and
// activity log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wo *models.WorkOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.WorkOrder, error)
	UpdateIfStatus(ctx context.Context, id uuid.UUID, current enums.WorkOrderStatus, updates map[string]any) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	MarkInvoiced(ctx context.Context, id, invoiceID uuid.UUID, at time.Time) (bool, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	CreatePart(ctx context.Context, part *models.WorkOrderPart) error
	FindPart(ctx context.Context, workOrderID, partID uuid.UUID) (*models.WorkOrderPart, error)
	DeletePart(ctx context.Context, partID uuid.UUID) error
	ListParts(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPart, error)
	HeldQuantity(ctx context.Context, workOrderID, itemID uuid.UUID) (int, error)
	CreateActivity(ctx context.Context, row *models.WorkOrderActivity) error
	ListActivity(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderActivity, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a work order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wo).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

// FindByIDForUpdate loads the work order holding a row lock until the
// surrounding transaction ends, so status changes wait for part edits.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wo).Error
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.WorkOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.WorkOrder{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.TechnicianID != nil {
		query = query.Where("technician_id = ?", *filters.TechnicianID)
	}
	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	query, err := pagination.Keyset(query, params)
	if err != nil {
		return nil, err
	}
	var rows []models.WorkOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateIfStatus applies updates only while the row still holds the expected
// status, so two racing transitions cannot both win.
func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, current enums.WorkOrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WorkOrder{}).
		Where("id = ? AND status = ?", id, current).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.WorkOrder{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkInvoiced links the invoice unless one is already linked.
func (r *repository) MarkInvoiced(ctx context.Context, id, invoiceID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WorkOrder{}).
		Where("id = ? AND invoice_id IS NULL", id).
		Updates(map[string]any{
			"invoice_id":  invoiceID,
			"invoiced_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreatePart(ctx context.Context, part *models.WorkOrderPart) error {
	return r.db.WithContext(ctx).Create(part).Error
}

func (r *repository) FindPart(ctx context.Context, workOrderID, partID uuid.UUID) (*models.WorkOrderPart, error) {
	var part models.WorkOrderPart
	err := r.db.WithContext(ctx).
		Where("id = ? AND work_order_id = ?", partID, workOrderID).
		First(&part).Error
	if err != nil {
		return nil, err
	}
	return &part, nil
}

func (r *repository) DeletePart(ctx context.Context, partID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", partID).Delete(&models.WorkOrderPart{}).Error
}

func (r *repository) ListParts(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPart, error) {
	var parts []models.WorkOrderPart
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("created_at ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// HeldQuantity is what the work order reserved for the item and has not
// returned.
func (r *repository) HeldQuantity(ctx context.Context, workOrderID, itemID uuid.UUID) (int, error) {
	var held int
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE
			WHEN type = ? THEN quantity
			WHEN type = ? THEN -quantity
			ELSE 0 END), 0)
		FROM inventory_adjustments
		WHERE work_order_id = ? AND inventory_item_id = ?
	`, string(enums.AdjustmentReserve), string(enums.AdjustmentReturn), workOrderID, itemID).
		Scan(&held).Error
	return held, err
}

func (r *repository) CreateActivity(ctx context.Context, row *models.WorkOrderActivity) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListActivity(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderActivity, error) {
	var rows []models.WorkOrderActivity
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

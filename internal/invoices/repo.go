package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

// Repository persists invoices and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWorkOrder(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, status *enums.InvoiceStatus, params pagination.Params) ([]models.Invoice, error)
	UpdateIfStatus(ctx context.Context, id uuid.UUID, current enums.InvoiceStatus, updates map[string]any) (bool, error)
	ListPastDue(ctx context.Context, now time.Time, after *PastDueCursor, limit int) ([]models.Invoice, error)
}

// PastDueCursor is the (due_at, id) position of the last invoice seen by a
// past-due scan.
type PastDueCursor struct {
	DueAt time.Time
	ID    uuid.UUID
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWorkOrder(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wo).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

// Create inserts the invoice together with its line items.
func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, status *enums.InvoiceStatus, params pagination.Params) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	query, err := pagination.Keyset(query, params)
	if err != nil {
		return nil, err
	}
	var rows []models.Invoice
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, current enums.InvoiceStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, current).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPastDue returns pending invoices whose due date has passed, oldest first.
// A non-nil after resumes the scan past that position, so rows that stay
// pending do not come back on the next page.
func (r *repository) ListPastDue(ctx context.Context, now time.Time, after *PastDueCursor, limit int) ([]models.Invoice, error) {
	var rows []models.Invoice
	q := r.db.WithContext(ctx).
		Where("status = ? AND due_at IS NOT NULL AND due_at < ?", enums.InvoiceStatusPending, now)
	if after != nil {
		q = q.Where("(due_at > ? OR (due_at = ? AND id > ?))", after.DueAt, after.DueAt, after.ID)
	}
	err := q.Order("due_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

package timetracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
)

// Repository defines persistence operations for time entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWorkOrder(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	Create(ctx context.Context, entry *models.TimeEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error)
	FindRunning(ctx context.Context, workOrderID, employeeID uuid.UUID) (*models.TimeEntry, error)
	Stop(ctx context.Context, id uuid.UUID, end time.Time, minutes int, billable bool, notes *string) (bool, error)
	UpdateStopped(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID, runningOnly bool) ([]models.TimeEntry, error)
	SumMinutes(ctx context.Context, workOrderID uuid.UUID, billable bool) (int, error)
	BillableByEmployee(ctx context.Context, workOrderID uuid.UUID) ([]EmployeeMinutes, error)
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

func (r *repository) Create(ctx context.Context, entry *models.TimeEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindRunning(ctx context.Context, workOrderID, employeeID uuid.UUID) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := r.db.WithContext(ctx).
		Where("work_order_id = ? AND employee_id = ? AND end_time IS NULL", workOrderID, employeeID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stop closes a running entry. It reports false when the entry was already
// stopped by someone else.
func (r *repository) Stop(ctx context.Context, id uuid.UUID, end time.Time, minutes int, billable bool, notes *string) (bool, error) {
	updates := map[string]any{
		"end_time":         end,
		"duration_minutes": minutes,
		"billable":         billable,
		"updated_at":       end,
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	res := r.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Where("id = ? AND end_time IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateStopped(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Where("id = ? AND end_time IS NOT NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID, runningOnly bool) ([]models.TimeEntry, error) {
	query := r.db.WithContext(ctx).Where("work_order_id = ?", workOrderID)
	if runningOnly {
		query = query.Where("end_time IS NULL")
	}
	var entries []models.TimeEntry
	if err := query.Order("start_time ASC").Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumMinutes(ctx context.Context, workOrderID uuid.UUID, billable bool) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Select("COALESCE(SUM(duration_minutes), 0)").
		Where("work_order_id = ? AND end_time IS NOT NULL AND billable = ?", workOrderID, billable).
		Scan(&total).Error
	return total, err
}

func (r *repository) BillableByEmployee(ctx context.Context, workOrderID uuid.UUID) ([]EmployeeMinutes, error) {
	var rows []EmployeeMinutes
	err := r.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Select("employee_id, MAX(employee_name) AS employee_name, SUM(duration_minutes) AS minutes").
		Where("work_order_id = ? AND end_time IS NOT NULL AND billable = ?", workOrderID, true).
		Group("employee_id").
		Having("SUM(duration_minutes) > 0").
		Order("employee_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

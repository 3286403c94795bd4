package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func (r *Repository) PendingExistsTx(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	var count int64
	err := tx.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_type = ? AND aggregate_id = ? AND published_at IS NULL", eventType, aggregateType, aggregateID).
		Count(&count).Error
	return count > 0, err
}

// FetchUnpublished returns the oldest pending rows below the attempt ceiling.
func (r *Repository) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	q := r.db.WithContext(ctx).Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	err := q.Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    err.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkDeadTx stamps a row as handled after it was copied to the DLQ so the
// publisher stops selecting it.
func (r *Repository) MarkDeadTx(tx *gorm.DB, id uuid.UUID, err error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at":  time.Now().UTC(),
			"last_error":    err.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeletePublishedBefore removes at most limit rows published before cutoff,
// oldest first, and reports how many went.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	oldest := tx.Session(&gorm.Session{NewDB: true}).Model(&models.OutboxEvent{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at ASC").
		Limit(limit)
	res := tx.WithContext(ctx).Where("id IN (?)", oldest).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

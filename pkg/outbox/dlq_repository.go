package outbox

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

const maxDLQErrorBytes = 1024

// DLQRepository keeps a copy of every event the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx must run in the same transaction that marks the outbox row dead.
func (r *DLQRepository) InsertTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if tx == nil {
		return errTxRequired
	}
	if !reason.IsValid() {
		return fmt.Errorf("invalid dlq reason %q", reason)
	}
	entry := deadLetterFor(event, reason, cause)
	return tx.Create(&entry).Error
}

// FindByEventID returns nil without error when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &entry, nil
}

func deadLetterFor(event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) models.OutboxDLQ {
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		// the failing attempt has not been counted on the row yet
		AttemptCount: event.AttemptCount + 1,
	}
	if cause != nil {
		msg := clipUTF8(cause.Error(), maxDLQErrorBytes)
		entry.ErrorMessage = &msg
	}
	return entry
}

// clipUTF8 cuts s to at most n bytes without splitting a rune.
func clipUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const currentEnvelopeVersion = 1

var errTxRequired = errors.New("transaction required")

// DomainEvent is what domain services hand to the emitter. Data is marshalled
// into the envelope as-is.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s event without aggregate id", e.EventType)
	}
	return nil
}

// Emitter is the slice of Service the domain packages depend on.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
	EmitIfNoPending(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo  *Repository
	logg  *logger.Logger
	now   func() time.Time
	newID func() string
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now, newID: uuid.NewString}
}

// Emit stores the event in the caller's transaction so it commits or rolls
// back together with the state change it describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	row, envelope, err := s.build(event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("queue %s: %w", event.EventType, err)
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

// EmitIfNoPending skips the event when one with the same type and aggregate is
// still waiting to be published. Used for alerts that should not pile up.
func (s *Service) EmitIfNoPending(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	pending, err := s.repo.PendingExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil {
		return fmt.Errorf("check pending %s: %w", event.EventType, err)
	}
	if pending {
		return nil
	}
	return s.Emit(ctx, tx, event)
}

func (s *Service) build(event DomainEvent) (models.OutboxEvent, PayloadEnvelope, error) {
	if err := event.validate(); err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}

	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    s.newID(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if envelope.Version == 0 {
		envelope.Version = currentEnvelopeVersion
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = s.now()
	}
	envelope.OccurredAt = envelope.OccurredAt.UTC()

	raw, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}, envelope, nil
}

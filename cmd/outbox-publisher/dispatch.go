package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/registry"
)

// processBatch reports whether any rows were picked up so Run can loop
// without sleeping while a backlog exists.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetch outbox rows: %w", err)
	}
	for _, event := range events {
		if err := s.dispatch(ctx, event); err != nil {
			return true, err
		}
	}
	return len(events) > 0, nil
}

// dispatch publishes one row and records the outcome. Only bookkeeping
// failures are returned; a failed publish is recorded on the row instead.
func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) error {
	fields := logFields(event)
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	err = s.publish(ctx, event, resolved.Descriptor.Topic, resolved.Envelope.EventID)
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		if err := s.repo.MarkPublished(ctx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	case errors.As(err, &permanent):
		return s.deadLetter(ctx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	case event.AttemptCount+1 >= s.maxAttempts:
		fields["attempt_count"] = event.AttemptCount + 1
		return s.deadLetter(ctx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err), fields)
	}

	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	s.metrics.IncFailed(string(event.EventType))
	if markErr := s.repo.MarkFailed(ctx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

// deadLetter copies the row into the DLQ and stamps it in one transaction.
func (s *Service) deadLetter(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.dlq.InsertTx(tx, event, reason, cause); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.repo.MarkDeadTx(tx, event.ID, cause); err != nil {
			return fmt.Errorf("mark dead %s: %w", event.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, topic, eventID string) error {
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	msg := s.message(event, eventID)

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}

// message carries the stored envelope untouched; attributes let subscribers
// filter without decoding it.
func (s *Service) message(event models.OutboxEvent, eventID string) *gcppubsub.Message {
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if s.pubsub.Ordered() {
		msg.OrderingKey = event.AggregateID.String()
	}
	return msg
}

func logFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

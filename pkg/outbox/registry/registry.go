// Package registry decides where each outbox event is published and decodes
// its payload before it leaves the process.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox"
	"github.com/angelmondragon/shopfloor-backend/pkg/outbox/payloads"
)

// maxEnvelopeVersion is the newest envelope layout this build can decode.
const maxEnvelopeVersion = 1

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// describe ties an event type to the payload struct it must decode into.
func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry routes work order, inventory and invoice events to their
// configured topics.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	for name, topic := range map[string]string{
		"work orders": cfg.WorkOrdersTopic,
		"inventory":   cfg.InventoryTopic,
		"invoices":    cfg.InvoicesTopic,
	} {
		if topic == "" {
			return nil, fmt.Errorf("%s topic is required", name)
		}
	}

	descriptors := []EventDescriptor{
		describe[payloads.WorkOrderCreatedEvent](enums.EventWorkOrderCreated, enums.AggregateWorkOrder, cfg.WorkOrdersTopic),
		describe[payloads.WorkOrderStatusChangedEvent](enums.EventWorkOrderStatusChanged, enums.AggregateWorkOrder, cfg.WorkOrdersTopic),
		describe[payloads.WorkOrderAssignedEvent](enums.EventWorkOrderAssigned, enums.AggregateWorkOrder, cfg.WorkOrdersTopic),
		describe[payloads.InventoryLowStockEvent](enums.EventInventoryLowStock, enums.AggregateInventoryItem, cfg.InventoryTopic),
		describe[payloads.InvoiceCreatedEvent](enums.EventInvoiceCreated, enums.AggregateInvoice, cfg.InvoicesTopic),
		describe[payloads.InvoiceStatusChangedEvent](enums.EventInvoiceStatusChanged, enums.AggregateInvoice, cfg.InvoicesTopic),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure here is permanent for that row.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > maxEnvelopeVersion {
		return nil, permanent("unsupported envelope version %d", envelope.Version)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

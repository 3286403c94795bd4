package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateWorkOrder     OutboxAggregateType = "work_order"
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregateInvoice       OutboxAggregateType = "invoice"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateWorkOrder,
	AggregateInventoryItem,
	AggregateInvoice,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventWorkOrderCreated       OutboxEventType = "work_order_created"
	EventWorkOrderStatusChanged OutboxEventType = "work_order_status_changed"
	EventWorkOrderAssigned      OutboxEventType = "work_order_assigned"
	EventInventoryLowStock      OutboxEventType = "inventory_low_stock"
	EventInvoiceCreated         OutboxEventType = "invoice_created"
	EventInvoiceStatusChanged   OutboxEventType = "invoice_status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventWorkOrderCreated,
	EventWorkOrderStatusChanged,
	EventWorkOrderAssigned,
	EventInventoryLowStock,
	EventInvoiceCreated,
	EventInvoiceStatusChanged,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}

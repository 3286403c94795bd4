package enums

import "fmt"

// WorkOrderStatus is the canonical lifecycle state of a work order.
type WorkOrderStatus string

const (
	WorkOrderStatusPending    WorkOrderStatus = "pending"
	WorkOrderStatusInProgress WorkOrderStatus = "in-progress"
	WorkOrderStatusOnHold     WorkOrderStatus = "on-hold"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

var validWorkOrderStatuses = []WorkOrderStatus{
	WorkOrderStatusPending,
	WorkOrderStatusInProgress,
	WorkOrderStatusOnHold,
	WorkOrderStatusCompleted,
	WorkOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s WorkOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WorkOrderStatus.
func (s WorkOrderStatus) IsValid() bool {
	for _, candidate := range validWorkOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWorkOrderStatus converts raw input into a WorkOrderStatus.
func ParseWorkOrderStatus(value string) (WorkOrderStatus, error) {
	for _, candidate := range validWorkOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid work order status %q", value)
}

// WorkOrderStatuses returns every canonical status.
func WorkOrderStatuses() []WorkOrderStatus {
	out := make([]WorkOrderStatus, len(validWorkOrderStatuses))
	copy(out, validWorkOrderStatuses)
	return out
}

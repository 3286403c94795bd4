package enums

import "fmt"

// WorkOrderSubStatus is a display label refining a canonical status. The
// lifecycle never branches on it.
type WorkOrderSubStatus string

const (
	SubStatusPartsOrdered        WorkOrderSubStatus = "parts-ordered"
	SubStatusWaitingParts        WorkOrderSubStatus = "waiting-parts"
	SubStatusWaitingCustomerAuth WorkOrderSubStatus = "waiting-customer-auth"
	SubStatusDiagnosing          WorkOrderSubStatus = "diagnosing"
	SubStatusQualityCheck        WorkOrderSubStatus = "quality-check"
)

var subStatusParents = map[WorkOrderSubStatus]WorkOrderStatus{
	SubStatusPartsOrdered:        WorkOrderStatusOnHold,
	SubStatusWaitingParts:        WorkOrderStatusOnHold,
	SubStatusWaitingCustomerAuth: WorkOrderStatusOnHold,
	SubStatusDiagnosing:          WorkOrderStatusInProgress,
	SubStatusQualityCheck:        WorkOrderStatusInProgress,
}

func (s WorkOrderSubStatus) String() string {
	return string(s)
}

func (s WorkOrderSubStatus) IsValid() bool {
	_, ok := subStatusParents[s]
	return ok
}

// Parent returns the canonical status the label belongs under.
func (s WorkOrderSubStatus) Parent() (WorkOrderStatus, bool) {
	parent, ok := subStatusParents[s]
	return parent, ok
}

// AllowedUnder reports whether the label may annotate the given status.
func (s WorkOrderSubStatus) AllowedUnder(status WorkOrderStatus) bool {
	parent, ok := subStatusParents[s]
	return ok && parent == status
}

func ParseWorkOrderSubStatus(value string) (WorkOrderSubStatus, error) {
	candidate := WorkOrderSubStatus(value)
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid work order sub status %q", value)
}

package timetracking

import (
	"time"

	"github.com/google/uuid"
)

type StartInput struct {
	WorkOrderID  uuid.UUID
	EmployeeID   uuid.UUID
	EmployeeName string
}

// StopInput finalises a timer. Billable defaults to true when nil.
type StopInput struct {
	Billable *bool
	Notes    *string
}

// CorrectionInput edits a stopped entry; nil fields keep their value.
type CorrectionInput struct {
	StartTime *time.Time
	EndTime   *time.Time
	Billable  *bool
	Notes     *string
}

// EmployeeMinutes is the billable time one employee logged on a work order.
type EmployeeMinutes struct {
	EmployeeID   uuid.UUID `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	Minutes      int       `json:"minutes"`
}

type Summary struct {
	WorkOrderID        uuid.UUID         `json:"work_order_id"`
	BillableMinutes    int               `json:"billable_minutes"`
	NonBillableMinutes int               `json:"non_billable_minutes"`
	ByEmployee         []EmployeeMinutes `json:"by_employee"`
}

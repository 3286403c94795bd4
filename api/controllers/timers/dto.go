package timers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
)

// startRequest is optional; an empty body clocks in the caller.
type startRequest struct {
	EmployeeID   *uuid.UUID `json:"employee_id"`
	EmployeeName *string    `json:"employee_name" validate:"omitempty,max=200"`
}

type stopRequest struct {
	Billable *bool   `json:"billable"`
	Notes    *string `json:"notes" validate:"omitempty,max=2000"`
}

type correctionRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Billable  *bool      `json:"billable"`
	Notes     *string    `json:"notes" validate:"omitempty,max=2000"`
}

type entryResponse struct {
	ID              uuid.UUID  `json:"id"`
	WorkOrderID     uuid.UUID  `json:"work_order_id"`
	EmployeeID      uuid.UUID  `json:"employee_id"`
	EmployeeName    string     `json:"employee_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Billable        bool       `json:"billable"`
	Running         bool       `json:"running"`
	Notes           *string    `json:"notes,omitempty"`
}

func toEntryResponse(e models.TimeEntry) entryResponse {
	return entryResponse{
		ID:              e.ID,
		WorkOrderID:     e.WorkOrderID,
		EmployeeID:      e.EmployeeID,
		EmployeeName:    e.EmployeeName,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		DurationMinutes: e.DurationMinutes,
		Billable:        e.Billable,
		Running:         e.EndTime == nil,
		Notes:           e.Notes,
	}
}

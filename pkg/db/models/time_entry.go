package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimeEntry is a timer interval for one employee on one work order. A nil
// EndTime means the timer is still running.
type TimeEntry struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	WorkOrderID     uuid.UUID  `gorm:"column:work_order_id;type:uuid;not null;index"`
	EmployeeID      uuid.UUID  `gorm:"column:employee_id;type:uuid;not null"`
	EmployeeName    string     `gorm:"column:employee_name;not null"`
	StartTime       time.Time  `gorm:"column:start_time;not null"`
	EndTime         *time.Time `gorm:"column:end_time"`
	DurationMinutes int        `gorm:"column:duration_minutes;not null;default:0"`
	Billable        bool       `gorm:"column:billable;not null;default:true"`
	Notes           *string    `gorm:"column:notes"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (TimeEntry) TableName() string { return "time_entries" }

func (e *TimeEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// Running reports whether the timer has not been stopped.
func (e TimeEntry) Running() bool {
	return e.EndTime == nil
}

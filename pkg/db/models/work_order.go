package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// WorkOrder is a job performed for a customer. Status is always canonical; the
// sub status is a display label only.
type WorkOrder struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Number         string                    `gorm:"column:number;not null;uniqueIndex"`
	CustomerID     uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null"`
	CustomerName   string                    `gorm:"column:customer_name;not null"`
	TechnicianID   *uuid.UUID                `gorm:"column:technician_id;type:uuid"`
	TechnicianName *string                   `gorm:"column:technician_name"`
	Status         enums.WorkOrderStatus     `gorm:"column:status;type:text;not null"`
	SubStatus      *enums.WorkOrderSubStatus `gorm:"column:sub_status;type:text"`
	Priority       enums.Priority            `gorm:"column:priority;type:text;not null"`
	Description    string                    `gorm:"column:description;not null"`
	Notes          *string                   `gorm:"column:notes"`
	InvoiceID      *uuid.UUID                `gorm:"column:invoice_id;type:uuid"`
	StartedAt      *time.Time                `gorm:"column:started_at"`
	CompletedAt    *time.Time                `gorm:"column:completed_at"`
	CancelledAt    *time.Time                `gorm:"column:cancelled_at"`
	InvoicedAt     *time.Time                `gorm:"column:invoiced_at"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (WorkOrder) TableName() string { return "work_orders" }

func (w *WorkOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

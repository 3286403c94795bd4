package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkOrderActivity is an append-only audit entry for a work order.
type WorkOrderActivity struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WorkOrderID uuid.UUID `gorm:"column:work_order_id;type:uuid;not null;index"`
	ActorID     uuid.UUID `gorm:"column:actor_id;type:uuid;not null"`
	ActorName   string    `gorm:"column:actor_name;not null"`
	Action      string    `gorm:"column:action;not null"`
	Message     string    `gorm:"column:message;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (WorkOrderActivity) TableName() string { return "work_order_activities" }

func (a *WorkOrderActivity) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

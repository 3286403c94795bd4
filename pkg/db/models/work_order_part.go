package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkOrderPart is an inventory line attached to a work order. The unit price
// is snapshotted when the part is attached.
type WorkOrderPart struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WorkOrderID     uuid.UUID `gorm:"column:work_order_id;type:uuid;not null;uniqueIndex:ux_work_order_parts_item,priority:1"`
	InventoryItemID uuid.UUID `gorm:"column:inventory_item_id;type:uuid;not null;uniqueIndex:ux_work_order_parts_item,priority:2"`
	Quantity        int       `gorm:"column:quantity;not null"`
	UnitPriceCents  int64     `gorm:"column:unit_price_cents;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (WorkOrderPart) TableName() string { return "work_order_parts" }

func (p *WorkOrderPart) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// InventoryAdjustment is an immutable ledger row. Quantity is the number of
// units the row covers; QuantityDelta is its signed effect on on-hand stock.
type InventoryAdjustment struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	WorkOrderID     *uuid.UUID           `gorm:"column:work_order_id;type:uuid;index"`
	InventoryItemID uuid.UUID            `gorm:"column:inventory_item_id;type:uuid;not null;index"`
	Type            enums.AdjustmentType `gorm:"column:type;type:text;not null"`
	Quantity        int                  `gorm:"column:quantity;not null"`
	QuantityDelta   int                  `gorm:"column:quantity_delta;not null"`
	ActorID         uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	ActorName       string               `gorm:"column:actor_name;not null"`
	Reason          *string              `gorm:"column:reason"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryAdjustment) TableName() string { return "inventory_adjustments" }

func (a *InventoryAdjustment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

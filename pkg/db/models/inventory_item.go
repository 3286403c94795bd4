package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryItem tracks on-hand stock for a part. Quantity never goes negative;
// the database enforces it with a CHECK constraint.
type InventoryItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU            string    `gorm:"column:sku;not null;uniqueIndex"`
	Name           string    `gorm:"column:name;not null"`
	Quantity       int       `gorm:"column:quantity;not null;default:0;check:chk_inventory_items_quantity,quantity >= 0"`
	ReorderPoint   int       `gorm:"column:reorder_point;not null;default:0"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null;default:0"`
	Supplier       *string   `gorm:"column:supplier"`
	Location       *string   `gorm:"column:location"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LowStock reports whether the item sits at or below its reorder point.
func (i InventoryItem) LowStock() bool {
	return i.Quantity <= i.ReorderPoint
}

package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type createItemRequest struct {
	SKU            string  `json:"sku" validate:"required,max=64,sku"`
	Name           string  `json:"name" validate:"required,max=200"`
	Quantity       int     `json:"quantity" validate:"min=0"`
	ReorderPoint   int     `json:"reorder_point" validate:"min=0"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"min=0"`
	Supplier       *string `json:"supplier" validate:"omitempty,max=200"`
	Location       *string `json:"location" validate:"omitempty,max=200"`
}

type restockRequest struct {
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Reason   *string `json:"reason" validate:"omitempty,max=500"`
}

type itemResponse struct {
	ID             uuid.UUID `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	ReorderPoint   int       `json:"reorder_point"`
	LowStock       bool      `json:"low_stock"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Supplier       *string   `json:"supplier,omitempty"`
	Location       *string   `json:"location,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toItemResponse(item models.InventoryItem) itemResponse {
	return itemResponse{
		ID:             item.ID,
		SKU:            item.SKU,
		Name:           item.Name,
		Quantity:       item.Quantity,
		ReorderPoint:   item.ReorderPoint,
		LowStock:       item.Quantity <= item.ReorderPoint,
		UnitPriceCents: item.UnitPriceCents,
		Supplier:       item.Supplier,
		Location:       item.Location,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

type adjustmentResponse struct {
	ID              uuid.UUID            `json:"id"`
	WorkOrderID     *uuid.UUID           `json:"work_order_id,omitempty"`
	InventoryItemID uuid.UUID            `json:"inventory_item_id"`
	Type            enums.AdjustmentType `json:"type"`
	Quantity        int                  `json:"quantity"`
	QuantityDelta   int                  `json:"quantity_delta"`
	ActorID         uuid.UUID            `json:"actor_id"`
	ActorName       string               `json:"actor_name"`
	Reason          *string              `json:"reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

func toAdjustmentResponse(a models.InventoryAdjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:              a.ID,
		WorkOrderID:     a.WorkOrderID,
		InventoryItemID: a.InventoryItemID,
		Type:            a.Type,
		Quantity:        a.Quantity,
		QuantityDelta:   a.QuantityDelta,
		ActorID:         a.ActorID,
		ActorName:       a.ActorName,
		Reason:          a.Reason,
		CreatedAt:       a.CreatedAt,
	}
}

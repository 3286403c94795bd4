package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// WorkOrderCreatedEvent announces a new work order in pending.
type WorkOrderCreatedEvent struct {
	WorkOrderID  uuid.UUID      `json:"work_order_id"`
	Number       string         `json:"number"`
	CustomerID   uuid.UUID      `json:"customer_id"`
	CustomerName string         `json:"customer_name"`
	Priority     enums.Priority `json:"priority"`
}

// WorkOrderStatusChangedEvent is emitted for every accepted transition.
type WorkOrderStatusChangedEvent struct {
	WorkOrderID uuid.UUID                 `json:"work_order_id"`
	Number      string                    `json:"number"`
	From        enums.WorkOrderStatus     `json:"from"`
	To          enums.WorkOrderStatus     `json:"to"`
	SubStatus   *enums.WorkOrderSubStatus `json:"sub_status,omitempty"`
	ChangedAt   time.Time                 `json:"changed_at"`
}

type WorkOrderAssignedEvent struct {
	WorkOrderID    uuid.UUID `json:"work_order_id"`
	TechnicianID   uuid.UUID `json:"technician_id"`
	TechnicianName string    `json:"technician_name"`
}

// InventoryLowStockEvent fires when on-hand stock reaches the reorder point.
type InventoryLowStockEvent struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	SKU             string    `json:"sku"`
	Name            string    `json:"name"`
	Quantity        int       `json:"quantity"`
	ReorderPoint    int       `json:"reorder_point"`
}

type InvoiceCreatedEvent struct {
	InvoiceID   uuid.UUID  `json:"invoice_id"`
	Number      string     `json:"number"`
	WorkOrderID *uuid.UUID `json:"work_order_id,omitempty"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	TotalCents  int64      `json:"total_cents"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

type InvoiceStatusChangedEvent struct {
	InvoiceID uuid.UUID           `json:"invoice_id"`
	Number    string              `json:"number"`
	From      enums.InvoiceStatus `json:"from"`
	To        enums.InvoiceStatus `json:"to"`
	ChangedAt time.Time           `json:"changed_at"`
}

package workorders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type createRequest struct {
	CustomerID   uuid.UUID `json:"customer_id" validate:"required"`
	CustomerName string    `json:"customer_name" validate:"required,max=200"`
	Description  string    `json:"description" validate:"required,max=2000"`
	Priority     string    `json:"priority"`
	Notes        *string   `json:"notes" validate:"omitempty,max=2000"`
}

type transitionRequest struct {
	Status    string  `json:"status" validate:"required"`
	SubStatus *string `json:"sub_status"`
}

type assignRequest struct {
	TechnicianID   uuid.UUID `json:"technician_id" validate:"required"`
	TechnicianName string    `json:"technician_name" validate:"required,max=200"`
}

type attachPartRequest struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id" validate:"required"`
	Quantity        int       `json:"quantity" validate:"required,min=1"`
}

type workOrderResponse struct {
	ID             uuid.UUID                 `json:"id"`
	Number         string                    `json:"number"`
	CustomerID     uuid.UUID                 `json:"customer_id"`
	CustomerName   string                    `json:"customer_name"`
	TechnicianID   *uuid.UUID                `json:"technician_id,omitempty"`
	TechnicianName *string                   `json:"technician_name,omitempty"`
	Status         enums.WorkOrderStatus     `json:"status"`
	SubStatus      *enums.WorkOrderSubStatus `json:"sub_status,omitempty"`
	Priority       enums.Priority            `json:"priority"`
	Description    string                    `json:"description"`
	Notes          *string                   `json:"notes,omitempty"`
	InvoiceID      *uuid.UUID                `json:"invoice_id,omitempty"`
	StartedAt      *time.Time                `json:"started_at,omitempty"`
	CompletedAt    *time.Time                `json:"completed_at,omitempty"`
	CancelledAt    *time.Time                `json:"cancelled_at,omitempty"`
	InvoicedAt     *time.Time                `json:"invoiced_at,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func toWorkOrderResponse(wo models.WorkOrder) workOrderResponse {
	return workOrderResponse{
		ID:             wo.ID,
		Number:         wo.Number,
		CustomerID:     wo.CustomerID,
		CustomerName:   wo.CustomerName,
		TechnicianID:   wo.TechnicianID,
		TechnicianName: wo.TechnicianName,
		Status:         wo.Status,
		SubStatus:      wo.SubStatus,
		Priority:       wo.Priority,
		Description:    wo.Description,
		Notes:          wo.Notes,
		InvoiceID:      wo.InvoiceID,
		StartedAt:      wo.StartedAt,
		CompletedAt:    wo.CompletedAt,
		CancelledAt:    wo.CancelledAt,
		InvoicedAt:     wo.InvoicedAt,
		CreatedAt:      wo.CreatedAt,
		UpdatedAt:      wo.UpdatedAt,
	}
}

type partResponse struct {
	ID              uuid.UUID `json:"id"`
	WorkOrderID     uuid.UUID `json:"work_order_id"`
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Quantity        int       `json:"quantity"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPartResponse(p models.WorkOrderPart) partResponse {
	return partResponse{
		ID:              p.ID,
		WorkOrderID:     p.WorkOrderID,
		InventoryItemID: p.InventoryItemID,
		Quantity:        p.Quantity,
		UnitPriceCents:  p.UnitPriceCents,
		CreatedAt:       p.CreatedAt,
	}
}

type activityResponse struct {
	ID        uuid.UUID `json:"id"`
	ActorID   uuid.UUID `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func toActivityResponse(a models.WorkOrderActivity) activityResponse {
	return activityResponse{
		ID:        a.ID,
		ActorID:   a.ActorID,
		ActorName: a.ActorName,
		Action:    a.Action,
		Message:   a.Message,
		CreatedAt: a.CreatedAt,
	}
}

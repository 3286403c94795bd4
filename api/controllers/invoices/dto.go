package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

type fromWorkOrderRequest struct {
	TaxRate *decimal.Decimal `json:"tax_rate" validate:"omitempty,gte=0,lte=1"`
}

type lineRequest struct {
	Kind           string          `json:"kind"`
	Name           string          `json:"name" validate:"required,max=200"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64           `json:"unit_price_cents" validate:"min=0"`
}

type standaloneRequest struct {
	CustomerID   uuid.UUID        `json:"customer_id" validate:"required"`
	CustomerName string           `json:"customer_name" validate:"required,max=200"`
	TaxRate      *decimal.Decimal `json:"tax_rate" validate:"omitempty,gte=0,lte=1"`
	Lines        []lineRequest    `json:"lines" validate:"required,min=1,dive"`
	Notes        *string          `json:"notes" validate:"omitempty,max=2000"`
}

type payRequest struct {
	Method    string  `json:"method" validate:"required,max=64"`
	Reference *string `json:"reference" validate:"omitempty,max=200"`
}

type lineResponse struct {
	Position        int                `json:"position"`
	Kind            enums.LineItemKind `json:"kind"`
	Name            string             `json:"name"`
	Quantity        decimal.Decimal    `json:"quantity"`
	UnitPriceCents  int64              `json:"unit_price_cents"`
	TotalCents      int64              `json:"total_cents"`
	InventoryItemID *uuid.UUID         `json:"inventory_item_id,omitempty"`
	EmployeeID      *uuid.UUID         `json:"employee_id,omitempty"`
}

type invoiceResponse struct {
	ID               uuid.UUID           `json:"id"`
	Number           string              `json:"number"`
	WorkOrderID      *uuid.UUID          `json:"work_order_id,omitempty"`
	CustomerID       uuid.UUID           `json:"customer_id"`
	CustomerName     string              `json:"customer_name"`
	Status           enums.InvoiceStatus `json:"status"`
	SubtotalCents    int64               `json:"subtotal_cents"`
	TaxRate          decimal.Decimal     `json:"tax_rate"`
	TaxCents         int64               `json:"tax_cents"`
	TotalCents       int64               `json:"total_cents"`
	DueAt            *time.Time          `json:"due_at,omitempty"`
	SentAt           *time.Time          `json:"sent_at,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	PaymentMethod    *string             `json:"payment_method,omitempty"`
	PaymentReference *string             `json:"payment_reference,omitempty"`
	Notes            *string             `json:"notes,omitempty"`
	Lines            []lineResponse      `json:"lines"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toInvoiceResponse(inv models.Invoice) invoiceResponse {
	lines := make([]lineResponse, 0, len(inv.LineItems))
	for _, l := range inv.LineItems {
		lines = append(lines, lineResponse{
			Position:        l.Position,
			Kind:            l.Kind,
			Name:            l.Name,
			Quantity:        l.Quantity,
			UnitPriceCents:  l.UnitPriceCents,
			TotalCents:      l.TotalCents,
			InventoryItemID: l.InventoryItemID,
			EmployeeID:      l.EmployeeID,
		})
	}
	return invoiceResponse{
		ID:               inv.ID,
		Number:           inv.Number,
		WorkOrderID:      inv.WorkOrderID,
		CustomerID:       inv.CustomerID,
		CustomerName:     inv.CustomerName,
		Status:           inv.Status,
		SubtotalCents:    inv.SubtotalCents,
		TaxRate:          inv.TaxRate,
		TaxCents:         inv.TaxCents,
		TotalCents:       inv.TotalCents,
		DueAt:            inv.DueAt,
		SentAt:           inv.SentAt,
		PaidAt:           inv.PaidAt,
		CancelledAt:      inv.CancelledAt,
		PaymentMethod:    inv.PaymentMethod,
		PaymentReference: inv.PaymentReference,
		Notes:            inv.Notes,
		Lines:            lines,
		CreatedAt:        inv.CreatedAt,
	}
}

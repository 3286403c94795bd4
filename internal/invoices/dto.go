package invoices

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

// LineInput is a caller supplied line on a standalone invoice.
type LineInput struct {
	Kind           enums.LineItemKind
	Name           string
	Quantity       decimal.Decimal
	UnitPriceCents int64
}

type StandaloneInput struct {
	CustomerID   uuid.UUID
	CustomerName string
	TaxRate      decimal.Decimal
	Lines        []LineInput
	Notes        *string
	Actor        types.Actor
}

// PaymentInput records how an invoice was settled.
type PaymentInput struct {
	InvoiceID uuid.UUID
	Method    string
	Reference *string
	Actor     types.Actor
}

type ListParams struct {
	Status *enums.InvoiceStatus
	pagination.Params
}

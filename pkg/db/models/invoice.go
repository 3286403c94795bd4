package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// Invoice amounts are integer cents; TotalCents = SubtotalCents + TaxCents.
type Invoice struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Number           string              `gorm:"column:number;not null;uniqueIndex"`
	WorkOrderID      *uuid.UUID          `gorm:"column:work_order_id;type:uuid"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	CustomerName     string              `gorm:"column:customer_name;not null"`
	Status           enums.InvoiceStatus `gorm:"column:status;type:text;not null"`
	SubtotalCents    int64               `gorm:"column:subtotal_cents;not null"`
	TaxRate          decimal.Decimal     `gorm:"column:tax_rate;type:numeric(6,4);not null"`
	TaxCents         int64               `gorm:"column:tax_cents;not null"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	DueAt            *time.Time          `gorm:"column:due_at"`
	SentAt           *time.Time          `gorm:"column:sent_at"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	PaymentMethod    *string             `gorm:"column:payment_method"`
	PaymentReference *string             `gorm:"column:payment_reference"`
	Notes            *string             `gorm:"column:notes"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

type InvoiceLineItem struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID       uuid.UUID          `gorm:"column:invoice_id;type:uuid;not null;index"`
	Position        int                `gorm:"column:position;not null"`
	Kind            enums.LineItemKind `gorm:"column:kind;type:text;not null"`
	Name            string             `gorm:"column:name;not null"`
	Quantity        decimal.Decimal    `gorm:"column:quantity;type:numeric(12,2);not null"`
	UnitPriceCents  int64              `gorm:"column:unit_price_cents;not null"`
	TotalCents      int64              `gorm:"column:total_cents;not null"`
	InventoryItemID *uuid.UUID         `gorm:"column:inventory_item_id;type:uuid"`
	EmployeeID      *uuid.UUID         `gorm:"column:employee_id;type:uuid"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

func (l *InvoiceLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

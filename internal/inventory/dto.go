package inventory

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

// LedgerTotals are the summed adjustment quantities of one item on one work order.
type LedgerTotals struct {
	Reserved int
	Returned int
	Consumed int
}

// Held is the stock taken out of inventory for the work order and not given back.
func (l LedgerTotals) Held() int {
	return l.Reserved - l.Returned
}

// Outstanding is the reservation neither returned nor consumed yet.
func (l LedgerTotals) Outstanding() int {
	out := l.Reserved - l.Returned - l.Consumed
	if out < 0 {
		return 0
	}
	return out
}

// Shortage describes one line that could not be reserved.
type Shortage struct {
	ItemID    uuid.UUID `json:"item_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// MovedLine is an item quantity moved by reserve, consume or release.
type MovedLine struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// ConsumedLine is what invoicing bills for a consumed part.
type ConsumedLine struct {
	ItemID         uuid.UUID
	SKU            string
	Name           string
	Quantity       int
	UnitPriceCents int64
}

type CreateItemInput struct {
	SKU            string
	Name           string
	Quantity       int
	ReorderPoint   int
	UnitPriceCents int64
	Supplier       *string
	Location       *string
}

type RestockInput struct {
	ItemID   uuid.UUID
	Quantity int
	Reason   *string
	Actor    types.Actor
}

type ListItemsParams struct {
	LowStockOnly bool
	pagination.Params
}

// AdjustmentFilter narrows the ledger; nil fields are ignored.
type AdjustmentFilter struct {
	ItemID      *uuid.UUID
	WorkOrderID *uuid.UUID
	Type        *enums.AdjustmentType
}

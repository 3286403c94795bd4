package workorders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

type CreateInput struct {
	CustomerID   uuid.UUID
	CustomerName string
	Description  string
	Priority     string
	Notes        *string
	Actor        types.Actor
}

// TransitionInput requests a status change. SubStatus is optional and must
// belong under the target status.
type TransitionInput struct {
	WorkOrderID uuid.UUID
	Status      enums.WorkOrderStatus
	SubStatus   *enums.WorkOrderSubStatus
	Actor       types.Actor
}

type AssignInput struct {
	WorkOrderID    uuid.UUID
	TechnicianID   uuid.UUID
	TechnicianName string
	Actor          types.Actor
}

type AddPartInput struct {
	WorkOrderID     uuid.UUID
	InventoryItemID uuid.UUID
	Quantity        int
	Actor           types.Actor
}

// ListFilters narrow the work order list; zero values are ignored.
type ListFilters struct {
	Status       *enums.WorkOrderStatus
	TechnicianID *uuid.UUID
	CustomerID   *uuid.UUID
}

type ListParams struct {
	ListFilters
	pagination.Params
}

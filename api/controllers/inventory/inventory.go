package inventory

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shopfloor-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	internalinventory "github.com/angelmondragon/shopfloor-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable")
}

func CreateItem(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), internalinventory.CreateItemInput{
			SKU:            validators.SanitizeString(payload.SKU, 64),
			Name:           validators.SanitizeString(payload.Name, 200),
			Quantity:       payload.Quantity,
			ReorderPoint:   payload.ReorderPoint,
			UnitPriceCents: payload.UnitPriceCents,
			Supplier:       payload.Supplier,
			Location:       payload.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toItemResponse(*item))
	}
}

// ListItems pages the catalogue; low_stock=true keeps items at or below reorder point.
func ListItems(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalinventory.ListItemsParams{
			LowStockOnly: strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("low_stock")), "true"),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		page, err := svc.ListItems(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Map(page, toItemResponse))
	}
}

func GetItem(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponse(*item))
	}
}

func Restock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Restock(r.Context(), internalinventory.RestockInput{
			ItemID:   id,
			Quantity: payload.Quantity,
			Reason:   payload.Reason,
			Actor:    actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toItemResponse(*item))
	}
}

func Adjustments(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		id, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListAdjustments(r.Context(), internalinventory.AdjustmentFilter{ItemID: &id})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]adjustmentResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toAdjustmentResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

package workorders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shopfloor-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	internalworkorders "github.com/angelmondragon/shopfloor-backend/internal/workorders"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
)

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "work orders service unavailable")
}

// Create opens a new work order in pending status.
func Create(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wo, err := svc.Create(r.Context(), internalworkorders.CreateInput{
			CustomerID:   payload.CustomerID,
			CustomerName: validators.SanitizeString(payload.CustomerName, 200),
			Description:  validators.SanitizeString(payload.Description, 2000),
			Priority:     payload.Priority,
			Notes:        payload.Notes,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toWorkOrderResponse(*wo))
	}
}

// List pages work orders newest first with optional status, technician and customer filters.
func List(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Map(page, toWorkOrderResponse))
	}
}

func parseListParams(r *http.Request) (internalworkorders.ListParams, error) {
	var params internalworkorders.ListParams

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Params = pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if raw := validators.QueryString(r, "status"); raw != nil {
		status, err := enums.ParseWorkOrderStatus(*raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}
	if params.TechnicianID, err = validators.QueryUUID(r, "technician_id"); err != nil {
		return params, err
	}
	if params.CustomerID, err = validators.QueryUUID(r, "customer_id"); err != nil {
		return params, err
	}
	return params, nil
}

func Get(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		wo, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toWorkOrderResponse(*wo))
	}
}

// Transition moves the work order along the lifecycle, coupling inventory as needed.
func Transition(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseWorkOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		input := internalworkorders.TransitionInput{
			WorkOrderID: id,
			Status:      status,
			Actor:       actor,
		}
		if payload.SubStatus != nil && strings.TrimSpace(*payload.SubStatus) != "" {
			sub, err := enums.ParseWorkOrderSubStatus(strings.TrimSpace(*payload.SubStatus))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sub status"))
				return
			}
			input.SubStatus = &sub
		}

		wo, err := svc.Transition(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toWorkOrderResponse(*wo))
	}
}

func Assign(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload assignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wo, err := svc.AssignTechnician(r.Context(), internalworkorders.AssignInput{
			WorkOrderID:    id,
			TechnicianID:   payload.TechnicianID,
			TechnicianName: validators.SanitizeString(payload.TechnicianName, 200),
			Actor:          actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toWorkOrderResponse(*wo))
	}
}

func Activity(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := svc.ListActivity(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]activityResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toActivityResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

func ListParts(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		parts, err := svc.ListParts(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapParts(parts))
	}
}

// AttachPart adds an inventory item to the work order. Stock is only
// touched when the work order is already in progress.
func AttachPart(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload attachPartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		part, err := svc.AddPart(r.Context(), internalworkorders.AddPartInput{
			WorkOrderID:     id,
			InventoryItemID: payload.InventoryItemID,
			Quantity:        payload.Quantity,
			Actor:           actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPartResponse(*part))
	}
}

func RemovePart(svc internalworkorders.Service, logg *logger.Logger) http.HandlerFunc {
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
		partID, err := validators.PathUUID(r, "partId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemovePart(r.Context(), id, partID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func mapParts(parts []models.WorkOrderPart) []partResponse {
	out := make([]partResponse, 0, len(parts))
	for _, p := range parts {
		out = append(out, toPartResponse(p))
	}
	return out
}

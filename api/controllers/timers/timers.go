package timers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/shopfloor-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	"github.com/angelmondragon/shopfloor-backend/internal/timetracking"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "time tracking service unavailable")
}

// Start clocks an employee in on the work order. The employee defaults to
// the caller; a body may name someone else.
func Start(svc timetracking.Service, logg *logger.Logger) http.HandlerFunc {
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
		workOrderID, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload startRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil && !errors.Is(err, io.EOF) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		input := timetracking.StartInput{
			WorkOrderID:  workOrderID,
			EmployeeID:   actor.ID,
			EmployeeName: actor.Name,
		}
		if payload.EmployeeID != nil {
			input.EmployeeID = *payload.EmployeeID
			input.EmployeeName = ""
		}
		if payload.EmployeeName != nil {
			input.EmployeeName = validators.SanitizeString(*payload.EmployeeName, 200)
		}
		if strings.TrimSpace(input.EmployeeName) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "employee_name is required when employee_id is given"))
			return
		}

		entry, err := svc.StartTimer(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toEntryResponse(*entry))
	}
}

func Stop(svc timetracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		if _, err := actorcontext.ResolveActor(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entryID, err := validators.PathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stopRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil && !errors.Is(err, io.EOF) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		entry, err := svc.StopTimer(r.Context(), entryID, timetracking.StopInput{
			Billable: payload.Billable,
			Notes:    payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toEntryResponse(*entry))
	}
}

// Correct edits a stopped entry and recomputes its duration.
func Correct(svc timetracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		if _, err := actorcontext.ResolveActor(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entryID, err := validators.PathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload correctionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.CorrectEntry(r.Context(), entryID, timetracking.CorrectionInput{
			StartTime: payload.StartTime,
			EndTime:   payload.EndTime,
			Billable:  payload.Billable,
			Notes:     payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toEntryResponse(*entry))
	}
}

func List(svc timetracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		workOrderID, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.ListEntries(r.Context(), workOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toEntryResponse(e))
		}
		responses.WriteSuccess(w, out)
	}
}

// Summary reports billable and non-billable minutes for the work order.
func Summary(svc timetracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		workOrderID, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), workOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

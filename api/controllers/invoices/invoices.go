package invoices

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfloor-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/api/validators"
	internalinvoices "github.com/angelmondragon/shopfloor-backend/internal/invoices"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/pagination"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable")
}

// FromWorkOrder bills a work order's consumed parts and billable labor.
// A repeated call answers ALREADY_INVOICED with the existing invoice as data.
func FromWorkOrder(svc internalinvoices.Service, defaultTaxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
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

		var payload fromWorkOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil && !errors.Is(err, io.EOF) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		invoice, err := svc.CreateFromWorkOrder(r.Context(), workOrderID, validators.OptionalDecimal(payload.TaxRate, defaultTaxRate), actor)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeAlreadyInvoiced) && invoice != nil {
				responses.WriteErrorWithData(r.Context(), logg, w, err, toInvoiceResponse(*invoice))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toInvoiceResponse(*invoice))
	}
}

func CreateStandalone(svc internalinvoices.Service, defaultTaxRate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
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

		var payload standaloneRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]internalinvoices.LineInput, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, internalinvoices.LineInput{
				Kind:           enums.LineItemKind(strings.TrimSpace(line.Kind)),
				Name:           validators.SanitizeString(line.Name, 200),
				Quantity:       line.Quantity,
				UnitPriceCents: line.UnitPriceCents,
			})
		}

		invoice, err := svc.CreateStandalone(r.Context(), internalinvoices.StandaloneInput{
			CustomerID:   payload.CustomerID,
			CustomerName: validators.SanitizeString(payload.CustomerName, 200),
			TaxRate:      validators.OptionalDecimal(payload.TaxRate, defaultTaxRate),
			Lines:        lines,
			Notes:        payload.Notes,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toInvoiceResponse(*invoice))
	}
}

func List(svc internalinvoices.Service, logg *logger.Logger) http.HandlerFunc {
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
		params := internalinvoices.ListParams{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := validators.QueryString(r, "status"); raw != nil {
			status, err := enums.ParseInvoiceStatus(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Map(page, toInvoiceResponse))
	}
}

func Get(svc internalinvoices.Service, logg *logger.Logger) http.HandlerFunc {
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

		invoice, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInvoiceResponse(*invoice))
	}
}

type statusFunc func(ctx context.Context, id uuid.UUID, actor types.Actor) (*models.Invoice, error)

// changeStatus is shared by send and cancel, which only need the invoice id.
func changeStatus(svc internalinvoices.Service, logg *logger.Logger, fn func(internalinvoices.Service) statusFunc) http.HandlerFunc {
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

		invoice, err := fn(svc)(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInvoiceResponse(*invoice))
	}
}

// Send issues a draft invoice to the customer.
func Send(svc internalinvoices.Service, logg *logger.Logger) http.HandlerFunc {
	return changeStatus(svc, logg, func(s internalinvoices.Service) statusFunc { return s.Send })
}

func Cancel(svc internalinvoices.Service, logg *logger.Logger) http.HandlerFunc {
	return changeStatus(svc, logg, func(s internalinvoices.Service) statusFunc { return s.Cancel })
}

func Pay(svc internalinvoices.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload payRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.MarkPaid(r.Context(), internalinvoices.PaymentInput{
			InvoiceID: id,
			Method:    validators.SanitizeString(payload.Method, 64),
			Reference: payload.Reference,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInvoiceResponse(*invoice))
	}
}

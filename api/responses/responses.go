package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	WriteErrorWithData(ctx, logg, w, err, nil)
}

// WriteErrorWithData renders the error envelope and attaches data alongside
// it, e.g. the existing invoice when a work order was already billed.
func WriteErrorWithData(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, data any) {
	typed := toTyped(err)
	meta := pkgerrors.MetadataFor(typed.Code())
	logFailure(ctx, logg, err, meta.HTTPStatus)

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		Retryable: meta.Retryable,
	}
	if meta.ExposeMessage && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr, Data: data})
}

func toTyped(err error) *pkgerrors.Error {
	if err == nil {
		err = errors.New("unknown error")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, status int) {
	if logg == nil {
		return
	}
	ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

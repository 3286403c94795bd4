package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

// PathUUID reads a chi URL parameter and parses it as a UUID.
func PathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": key})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "path parameter must be a uuid").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// QueryUUID returns nil when the parameter is absent.
func QueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be a uuid").WithDetails(map[string]any{"field": key})
	}
	return &id, nil
}

func QueryString(r *http.Request, key string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	return &raw
}

// OptionalDecimal falls back to def when value is nil.
func OptionalDecimal(value *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if value == nil {
		return def
	}
	return *value
}

// ParseQueryInt returns defaultVal when key is absent and rejects values
// outside [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := QueryString(r, key)
	if raw == nil {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(*raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be between %d and %d", key, min, max).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// SanitizeString trims input and caps it at maxLen bytes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

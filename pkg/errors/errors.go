package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Shop floor domain failures.
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeAlreadyInvoiced   Code = "ALREADY_INVOICED"
)

// Metadata describes how a code is rendered to API clients.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// DetailsAllowed lets structured details reach the client.
	DetailsAllowed bool
	// ExposeMessage replaces PublicMessage with the error's own message.
	ExposeMessage bool
}

var taxonomy = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
	CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
	CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ExposeMessage: true},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, ExposeMessage: true},
	CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true, ExposeMessage: true},
	CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", ExposeMessage: true},
	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},

	CodeInvalidTransition: {HTTPStatus: http.StatusConflict, PublicMessage: "status transition not allowed", DetailsAllowed: true, ExposeMessage: true},
	// stock may be restocked between attempts
	CodeInsufficientStock: {HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "insufficient stock", DetailsAllowed: true, ExposeMessage: true},
	CodeInvalidState:      {HTTPStatus: http.StatusConflict, PublicMessage: "operation not allowed in current state", DetailsAllowed: true, ExposeMessage: true},
	CodeAlreadyInvoiced:   {HTTPStatus: http.StatusConflict, PublicMessage: "work order already invoiced", DetailsAllowed: true, ExposeMessage: true},
}

// MetadataFor falls back to CodeInternal for codes outside the taxonomy.
func MetadataFor(code Code) Metadata {
	if meta, ok := taxonomy[code]; ok {
		return meta
	}
	return taxonomy[CodeInternal]
}

// Error is the typed failure every service returns across package borders.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// IsRetryable reports whether a client may repeat the call unchanged.
// Untyped errors count as internal faults.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.Code()).Retryable
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

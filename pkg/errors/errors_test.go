package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTaxonomyStatuses(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeUnauthorized:      http.StatusUnauthorized,
		CodeForbidden:         http.StatusForbidden,
		CodeNotFound:          http.StatusNotFound,
		CodeStateConflict:     http.StatusUnprocessableEntity,
		CodeInternal:          http.StatusInternalServerError,
		CodeDependency:        http.StatusServiceUnavailable,
		CodeInvalidTransition: http.StatusConflict,
		CodeInsufficientStock: http.StatusConflict,
		CodeInvalidState:      http.StatusConflict,
		CodeAlreadyInvoiced:   http.StatusConflict,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("%s: expected status %d got %d", code, status, got)
		}
	}
}

func TestOnlyFaultsAndShortagesAreRetryable(t *testing.T) {
	for code, meta := range taxonomy {
		want := code == CodeInternal || code == CodeDependency || code == CodeInsufficientStock
		if meta.Retryable != want {
			t.Fatalf("%s: retryable=%v", code, meta.Retryable)
		}
	}
}

func TestServerFaultsHideTheirMessage(t *testing.T) {
	for _, code := range []Code{CodeInternal, CodeDependency} {
		if MetadataFor(code).ExposeMessage {
			t.Fatalf("%s must not expose internal messages", code)
		}
	}
	if !MetadataFor(CodeInvalidTransition).ExposeMessage {
		t.Fatalf("domain rejections should carry their own message")
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	if meta := MetadataFor("SOMETHING_UNKNOWN"); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := Newf(CodeValidation, "quantity must be positive, got %d", 0)
	if base.Code() != CodeValidation || base.Message() != "quantity must be positive, got 0" {
		t.Fatalf("unexpected error %v", base)
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	base.WithDetails(map[string]any{"field": "quantity"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "load work order")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: load work order: boom" {
		t.Fatalf("unexpected text %q", wrapped.Error())
	}
	if Wrap(CodeConflict, nil, "dup").Unwrap() != nil {
		t.Fatalf("nil cause should stay nil")
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	inner := New(CodeInsufficientStock, "short").WithDetails(map[string]any{"item_id": "abc"})
	outer := fmt.Errorf("reserve: %w", inner)
	if !Is(outer, CodeInsufficientStock) {
		t.Fatalf("expected wrapped insufficient stock to match")
	}
	if Is(outer, CodeInvalidState) {
		t.Fatalf("did not expect invalid state to match")
	}
	if Is(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped error should not match any code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
	if !IsRetryable(stdErrors.New("socket closed")) {
		t.Fatalf("untyped errors count as internal")
	}
	if IsRetryable(New(CodeAlreadyInvoiced, "billed")) {
		t.Fatalf("already invoiced is final")
	}
	if !IsRetryable(fmt.Errorf("attach: %w", New(CodeInsufficientStock, "short"))) {
		t.Fatalf("shortage should be retryable")
	}
}

func TestLogFieldsCarriesPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_invoices_work_order", TableName: "invoices"}
	err := fmt.Errorf("outer: %w", Wrap(CodeConflict, pgErr, "insert invoice"))

	fields := LogFields(err)
	if fields["error_code"] != string(CodeConflict) {
		t.Fatalf("expected conflict code, got %v", fields["error_code"])
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "ux_invoices_work_order" {
		t.Fatalf("missing pg fields: %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty values should be omitted")
	}
	chain, _ := fields["error_chain"].([]string)
	if len(chain) != 3 {
		t.Fatalf("expected chain of 3, got %v", chain)
	}
}

func TestLogFieldsPlainError(t *testing.T) {
	fields := LogFields(stdErrors.New("boom"))
	if len(fields) != 1 || fields["error"] != "boom" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

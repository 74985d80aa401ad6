package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "out of stock", detailsOK: true},
		{code: CodeConcurrencyConflict, status: http.StatusConflict, publicMsg: "concurrent update detected, retry the request", retryable: true},
		{code: CodeConfiguration, status: http.StatusInternalServerError, publicMsg: "integration misconfigured"},
		{code: CodeNotImplemented, status: http.StatusNotImplemented, publicMsg: "not implemented"},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeAndRetryable(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeConcurrencyConflict, "version mismatch"))
	if !IsCode(err, CodeConcurrencyConflict) {
		t.Fatalf("expected wrapped code to be detected")
	}
	if IsCode(err, CodeInsufficientStock) {
		t.Fatalf("unexpected code match")
	}
	if !IsRetryable(err) {
		t.Fatalf("concurrency conflicts should be retryable")
	}
	if IsRetryable(New(CodeInsufficientStock, "out")) {
		t.Fatalf("capacity errors must not be retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatalf("untyped errors are not retryable")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "load stock record")
	want := "DEPENDENCY_ERROR: load stock record: dial tcp: refused"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestDiagnoseExtractsPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: SQLStateUniqueViolation, ConstraintName: "ux_stock_records_location_external", TableName: "stock_records"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create stock record")

	d := Diagnose(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if d.Postgres == nil || d.Postgres.SQLState != SQLStateUniqueViolation {
		t.Fatalf("expected postgres detail, got %+v", d.Postgres)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}

	fields := d.Fields()
	if fields["pg_constraint"] != "ux_stock_records_location_external" {
		t.Fatalf("missing constraint field: %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("blank postgres fields should be omitted: %v", fields)
	}
}

func TestDiagnosePlainError(t *testing.T) {
	d := Diagnose(stdErrors.New("plain"))
	if d.Postgres != nil || d.Code != "" {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if _, ok := d.Fields()["error_chain"]; ok {
		t.Fatal("single-entry chains are not logged")
	}
	if Diagnose(nil).Message != "" {
		t.Fatal("nil error should produce an empty diagnostic")
	}
}

package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryKind(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		kind   error
		status int
	}{
		{"not found", NotFound("claim", "c-1"), ErrNotFound, http.StatusNotFound},
		{"forbidden", Forbidden("no access"), ErrForbidden, http.StatusForbidden},
		{"precondition", PreconditionViolation("Submit", "CANCELED"), ErrPreconditionViolation, http.StatusConflict},
		{"amount", AmountInconsistency("invoice", "i-1", "paid exceeds amount"), ErrAmountInconsistency, http.StatusUnprocessableEntity},
		{"required", MissingRequiredFields([]string{"insured.name", "account"}), ErrMissingRequiredField, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.kind) {
				t.Errorf("Expected kind %v, got %v", tt.kind, tt.err.Err)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, tt.err.HTTPStatus)
			}
		})
	}
}

func TestMissingRequiredFieldsDetails(t *testing.T) {
	err := MissingRequiredFields([]string{"insured.name", "account"})
	if len(err.Details) != 2 || err.Details["account"] != "required" {
		t.Errorf("Expected both fields in details, got %v", err.Details)
	}
}

func TestWrapKeepsKind(t *testing.T) {
	wrapped := Wrap(PreconditionViolation("Cancel", "SETTLED"), "failed to reconcile")
	if !Is(wrapped, ErrPreconditionViolation) {
		t.Errorf("Expected precondition kind after wrap, got %v", wrapped)
	}
	if wrapped.HTTPStatus != http.StatusConflict {
		t.Errorf("Expected 409, got %d", wrapped.HTTPStatus)
	}

	plain := Wrap(fmt.Errorf("boom"), "failed to begin transaction")
	if plain.Code != "INTERNAL_ERROR" || plain.Error() != "failed to begin transaction: boom" {
		t.Errorf("Expected internal error, got %s / %s", plain.Code, plain.Error())
	}

	var appErr *AppError
	if !As(fmt.Errorf("outer: %w", wrapped), &appErr) {
		t.Error("Expected AppError through fmt wrapping")
	}
}

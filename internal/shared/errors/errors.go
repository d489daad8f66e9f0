package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation error")

	// Claim domain kinds
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrAmountInconsistency   = errors.New("amount inconsistency")
	ErrMissingRequiredField  = errors.New("missing required field")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether err carries the given sentinel
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As re-exported so callers need a single errors import
func As(err error, target any) bool {
	return errors.As(err, target)
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// PreconditionViolation is returned when a status transition is attempted from a
// status that does not allow it. The aggregate is left unchanged.
func PreconditionViolation(operation, status string) *AppError {
	return &AppError{
		Err:        ErrPreconditionViolation,
		Message:    fmt.Sprintf("%s is not allowed in status %s", operation, status),
		Code:       "PRECONDITION_VIOLATION",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"operation": operation, "status": status},
	}
}

// AmountInconsistency reports a failed money check on an entity
func AmountInconsistency(entity, id, reason string) *AppError {
	return &AppError{
		Err:        ErrAmountInconsistency,
		Message:    fmt.Sprintf("%s amounts are inconsistent: %s", entity, reason),
		Code:       "AMOUNT_INCONSISTENCY",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"entity": entity, "id": id},
	}
}

// MissingRequiredFields lists every empty field found by a submission check
func MissingRequiredFields(fields []string) *AppError {
	details := make(map[string]string, len(fields))
	for _, f := range fields {
		details[f] = "required"
	}
	return &AppError{
		Err:        ErrMissingRequiredField,
		Message:    fmt.Sprintf("%d required field(s) missing", len(fields)),
		Code:       "MISSING_REQUIRED_FIELD",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Err:        appErr.Err,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Code:       appErr.Code,
			HTTPStatus: appErr.HTTPStatus,
			Details:    appErr.Details,
		}
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

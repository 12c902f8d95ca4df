// Package apperror provides structured error handling for the inventory core.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the inventory core
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeNegativeStock     = "NEGATIVE_STOCK_VIOLATION"
	CodeCommitFailure     = "COMMIT_FAILURE"

	// Data-setup defects (422)
	CodeConversionNotFound = "CONVERSION_NOT_FOUND"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Transient contention (409) - retryable by the caller
	CodeLockContention = "LOCK_CONTENTION"
)

// AppError is the standard error type for the inventory core.
// It implements the error interface and carries structured details.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400).
// Raised before any mutation; precondition-violating input never writes.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInsufficientStock is returned when a reservation exceeds the available
// (unreserved) quantity. The caller decides whether to retry or fail.
func NewInsufficientStock(ingredientID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"ingredient_id": ingredientID,
			"requested":     requested,
			"available":     available,
		},
	}
}

// NewNegativeStock is returned when a decrementing movement would drive
// on-hand quantity below zero. Always fatal to the operation, never clamped.
func NewNegativeStock(ingredientID string, before, requested float64) *AppError {
	return &AppError{
		Code:       CodeNegativeStock,
		Message:    "Movement would drive stock below zero",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"ingredient_id": ingredientID,
			"on_hand":       before,
			"requested":     requested,
		},
	}
}

// NewConversionNotFound is returned when no active conversion rule exists for
// a unit pair. Treated as a data-setup defect, surfaced to an operator.
func NewConversionNotFound(ingredientID, fromUnit, toUnit string) *AppError {
	return &AppError{
		Code:       CodeConversionNotFound,
		Message:    fmt.Sprintf("No conversion from %s to %s", fromUnit, toUnit),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"ingredient_id": ingredientID,
			"from_unit":     fromUnit,
			"to_unit":       toUnit,
		},
	}
}

// NewCommitFailure is returned when a reservation group could not be converted
// to a physical deduction. The whole group rolls back.
func NewCommitFailure(groupID string, message string) *AppError {
	return &AppError{
		Code:       CodeCommitFailure,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"reservation_group_id": groupID},
	}
}

// NewLockContention wraps a lock-wait timeout after retries were exhausted.
// Transient: the caller may retry the whole operation.
func NewLockContention(err error) *AppError {
	return &AppError{
		Code:       CodeLockContention,
		Message:    "Operation timed out waiting for a row lock. Please retry.",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether err carries the given machine code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsLockContention checks if error is CodeLockContention
func IsLockContention(err error) bool {
	return IsCode(err, CodeLockContention)
}

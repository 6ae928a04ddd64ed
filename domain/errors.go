package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is a coded domain error. The API layer maps codes to HTTP statuses.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrNotFound             = NewError("NOT_FOUND", "resource not found")
	ErrAlreadyExists        = NewError("ALREADY_EXISTS", "resource already exists")
	ErrInvalidInput         = NewError("INVALID_INPUT", "invalid input provided")
	ErrInsufficientStock    = NewError("INSUFFICIENT_STOCK", "insufficient stock available")
	ErrPrescriptionRequired = NewError("PRESCRIPTION_REQUIRED", "prescription required for schedule H medicine")
	ErrEmptyCart            = NewError("EMPTY_CART", "no items in sale")
	ErrUnauthorized         = NewError("UNAUTHORIZED", "not authorized to perform this action")
	ErrForbidden            = NewError("FORBIDDEN", "insufficient permissions")
	ErrCorruptState         = NewError("CORRUPT_STATE", "stored state could not be decoded")
)

// ValidationError carries user-facing messages keyed by field.
// It wraps ErrInvalidInput so callers can match with errors.Is.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns e when it holds failures, otherwise nil.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StockError reports which medicine could not be supplied.
type StockError struct {
	MedicineID   string
	MedicineName string
	Requested    int64
	Available    int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.MedicineName, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
// Raised before any computation or storage access begins.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConfigurationIntegrity indicates a tax configuration that breaks the
// bracket contiguity invariant or a stored row that does not decode.
// Fatal to the request that hit it.
type ErrConfigurationIntegrity struct {
	Year          int
	TaxableIncome decimal.Decimal
	Reason        string
}

func (e *ErrConfigurationIntegrity) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tax configuration %d is inconsistent: %s", e.Year, e.Reason)
	}
	return fmt.Sprintf("tax configuration %d has no bracket for taxable income %s",
		e.Year, e.TaxableIncome.StringFixed(2))
}

// ErrStorageUnavailable indicates the persistence collaborator could not be reached.
type ErrStorageUnavailable struct {
	Store string
	Err   error
}

func (e *ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable [%s]: %v", e.Store, e.Err)
}

func (e *ErrStorageUnavailable) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates a missing or invalid bearer token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the caller may not read the requested user's data.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrDestinationUnavailable = errors.New("transfer destination unavailable")
	ErrStore                  = errors.New("store failure")
	ErrConflict               = errors.New("concurrent modification")
)

// Field-level validation causes.
var (
	ErrInvalidAmount         = errors.New("amount must be greater than 0")
	ErrBalanceOverflow       = errors.New("amount would overflow the account balance")
	ErrInvalidType           = errors.New("invalid transaction type")
	ErrEmptyCategory         = errors.New("category is required")
	ErrMissingAccount        = errors.New("account is required")
	ErrMissingDestination    = errors.New("transfer requires a destination account")
	ErrSameAccount           = errors.New("transfer destination must differ from source")
	ErrUnexpectedDestination = errors.New("destination account is only allowed for transfers")
	ErrInvalidDate           = errors.New("invalid date")
	ErrEmptyName             = errors.New("account name is required")
	ErrInvalidAccountType    = errors.New("invalid account type")
	ErrDescriptionTooLong    = errors.New("description too long (max 500 characters)")
)

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}

// NotFound builds an ErrNotFound for the given entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

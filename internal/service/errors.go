package service

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// ValidationError reports input that was rejected before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StoreOperationError reports a failed store call. The mappings are left
// untouched; the store's own state is whatever the failed call committed.
type StoreOperationError struct {
	Op  string
	Err error

	// ExpensesRemoved counts expenses already deleted when a cascade failed
	// on the traveler itself. Zero everywhere else.
	ExpensesRemoved int
}

func (e *StoreOperationError) Error() string {
	if e.ExpensesRemoved > 0 {
		return fmt.Sprintf("%s: %v (%d expenses already removed)", e.Op, e.Err, e.ExpensesRemoved)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreOperationError) Unwrap() error {
	return e.Err
}

// connectError maps domain errors to Connect codes.
func connectError(err error) *connect.Error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	var storeErr *StoreOperationError
	if errors.As(err, &storeErr) {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

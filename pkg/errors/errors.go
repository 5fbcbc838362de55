// Package errors defines error types and utilities for ListTheory
package errors

import (
	"errors"
	"fmt"
)

// Common errors that can occur in ListTheory operations
var (
	// ErrMissingItemID is returned when an update or delete operation has no item ID
	ErrMissingItemID = errors.New("missing item id")

	// ErrMissingFields is returned when an add or update operation carries no field values
	ErrMissingFields = errors.New("missing field values")

	// ErrMissingFormValues is returned when a validated write carries no form field values
	ErrMissingFormValues = errors.New("missing form field values")

	// ErrMissingPath is returned when a validated add has no target folder path
	ErrMissingPath = errors.New("missing target path")

	// ErrMissingCollection is returned when an operation has no target collection name
	ErrMissingCollection = errors.New("missing collection name")

	// ErrNilClient is returned when the engine is constructed or executed without a collection client
	ErrNilClient = errors.New("collection client is nil")

	// ErrConditionFailed is returned when an optimistic concurrency check rejects a write
	ErrConditionFailed = errors.New("concurrency check failed")

	// ErrItemNotFound is returned when an item targeted by an operation does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrTransactionFailed is returned when a grouped transaction fails as a whole
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrBatchOperationFailed is returned when a batch run partially fails
	ErrBatchOperationFailed = errors.New("batch operation failed")

	// ErrInvalidBatchSize is returned when a batch size below 1 is configured
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrInvalidToken is returned when a concurrency token cannot be parsed
	ErrInvalidToken = errors.New("invalid concurrency token")
)

// OperationError wraps a failure scoped to a single queued operation.
type OperationError struct {
	Err         error
	OperationID string
	Collection  string
	Kind        string
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "listtheory: operation failed"
	}
	kind := e.Kind
	if kind == "" {
		kind = "operation"
	}
	if e.Collection != "" {
		return fmt.Sprintf("listtheory: %s on %s failed: %v", kind, e.Collection, e.Err)
	}
	return fmt.Sprintf("listtheory: %s failed: %v", kind, e.Err)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is checks if the error matches the target error
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOperationError creates a new OperationError
func NewOperationError(operationID, collection, kind string, err error) *OperationError {
	return &OperationError{
		OperationID: operationID,
		Collection:  collection,
		Kind:        kind,
		Err:         err,
	}
}

// IsConditionFailed checks if an error indicates an optimistic concurrency rejection
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsNotFound checks if an error indicates a missing item
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// TransactionError provides context for grouped-transaction failures.
type TransactionError struct {
	Err            error
	Operation      string
	Collection     string
	Reason         string
	OperationIndex int
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	if e == nil {
		return "listtheory: transaction failed"
	}

	op := "transaction"
	if e.Operation != "" {
		op = fmt.Sprintf("%s operation %s", op, e.Operation)
	}
	if e.OperationIndex >= 0 {
		op = fmt.Sprintf("%s (index %d)", op, e.OperationIndex)
	}
	if e.Reason != "" {
		return fmt.Sprintf("listtheory: %s failed: %s", op, e.Reason)
	}
	return fmt.Sprintf("listtheory: %s failed", op)
}

// Unwrap returns the underlying error.
func (e *TransactionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrTransactionFailed in addition to the wrapped cause, so any
// grouped-transaction failure can be detected without knowing the transport
// error behind it.
func (e *TransactionError) Is(target error) bool {
	if target == ErrTransactionFailed {
		return true
	}
	return errors.Is(e.Err, target)
}

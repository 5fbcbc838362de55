package operation

import (
	"fmt"

	"github.com/theory-cloud/listtheory/pkg/errors"
)

// Result records the outcome of exactly one operation. Every queued
// operation produces one Result, even when its whole chunk failed.
type Result struct {
	OperationID string
	Collection  string
	Kind        Kind
	ItemID      int
	Success     bool

	// Data is the opaque payload returned by the service on success.
	// Nil on failure.
	Data any

	// Error is the failure message. Empty on success.
	Error string
}

// BatchError is the failure-only view of a Result, carried on the report
// for callers that iterate failures directly.
type BatchError struct {
	OperationID string
	Collection  string
	Kind        Kind
	ItemID      int
	Message     string
}

// Report aggregates one engine run. Results appear in enqueue order.
type Report struct {
	TotalOperations      int
	SuccessfulOperations int
	FailedOperations     int
	Results              []Result
	Errors               []BatchError

	// Success is true iff no operation failed.
	Success bool
}

// NewReport folds per-operation results into an aggregate report,
// computing counts and the failure view.
func NewReport(results []Result) *Report {
	report := &Report{
		TotalOperations: len(results),
		Results:         results,
	}

	for _, res := range results {
		if res.Success {
			report.SuccessfulOperations++
			continue
		}
		report.FailedOperations++
		report.Errors = append(report.Errors, BatchError{
			OperationID: res.OperationID,
			Collection:  res.Collection,
			Kind:        res.Kind,
			ItemID:      res.ItemID,
			Message:     res.Error,
		})
	}

	report.Success = report.FailedOperations == 0
	return report
}

// Err collapses the report into a single error value for callers that
// propagate batch failure instead of inspecting results: nil when every
// operation succeeded, an error wrapping ErrBatchOperationFailed otherwise.
func (r *Report) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return fmt.Errorf("%w: %d of %d operations failed",
		errors.ErrBatchOperationFailed, r.FailedOperations, r.TotalOperations)
}

// EmptyReport is the immediate result of executing zero operations.
// Running nothing is not an error.
func EmptyReport() *Report {
	return &Report{Success: true, Results: []Result{}}
}

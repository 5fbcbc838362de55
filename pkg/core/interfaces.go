// Package core defines the client-facing interfaces the batch engine is
// built against. Backends implement CollectionClient; the engine never
// sees anything more specific than these types.
package core

import (
	"context"

	"github.com/theory-cloud/listtheory/pkg/operation"
)

// CollectionClient is the engine's only boundary: a handle to the remote
// list collection service. Implementations must allow concurrent OpenBatch
// calls; the engine opens one transaction per chunk and, in concurrent
// mode, commits them from separate goroutines.
type CollectionClient interface {
	// OpenBatch opens a grouped transaction: a construct that defers
	// individual requests and fires them together in one round trip.
	OpenBatch() BatchTransaction
}

// BatchTransaction registers individual calls and commits them as a single
// round trip. Registration returns a ResultHandle that is resolved during
// Commit; a non-nil registration error means the call was rejected
// synchronously and no handle was created.
type BatchTransaction interface {
	// AddItem registers an item create from a field map.
	AddItem(collection string, fields map[string]any) (*ResultHandle, error)

	// UpdateItem registers a field-map update. A non-empty concurrencyToken
	// is passed through so the service can reject stale writes; an empty
	// token means an unconditional update.
	UpdateItem(collection string, itemID int, fields map[string]any, concurrencyToken string) (*ResultHandle, error)

	// DeleteItem registers an item delete, conditional on concurrencyToken
	// when non-empty.
	DeleteItem(collection string, itemID int, concurrencyToken string) (*ResultHandle, error)

	// AddValidated registers a validate-and-create at the given folder
	// path using ordered form field values.
	AddValidated(collection string, formValues []operation.FormValue, path string) (*ResultHandle, error)

	// UpdateValidated registers a validate-and-update of an existing item.
	UpdateValidated(collection string, itemID int, formValues []operation.FormValue) (*ResultHandle, error)

	// Commit performs the single round trip. A non-nil error means the
	// round trip itself failed and no handle was resolved; per-call
	// outcomes (including remote-reported failures) are carried on the
	// handles instead.
	Commit(ctx context.Context) error
}

// ResultHandle is an explicit result slot for one registered call. The
// backend resolves it from its commit-completion callback; the engine
// reads it back after Commit returns.
type ResultHandle struct {
	data     any
	err      error
	resolved bool
}

// Resolve marks the call successful with the service's response payload.
func (h *ResultHandle) Resolve(data any) {
	h.data = data
	h.err = nil
	h.resolved = true
}

// Fail marks the call failed with a remote-reported error.
func (h *ResultHandle) Fail(err error) {
	h.err = err
	h.resolved = true
}

// Outcome returns the resolved payload and error. resolved is false when
// the commit never reached this call.
func (h *ResultHandle) Outcome() (data any, err error, resolved bool) {
	return h.data, h.err, h.resolved
}

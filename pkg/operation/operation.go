// Package operation defines the unit of work executed by the batch engine:
// a single requested mutation against a named list collection, plus the
// per-operation and aggregate result records produced by a run.
package operation

import (
	"fmt"

	"github.com/theory-cloud/listtheory/pkg/errors"
)

// Kind identifies what an operation does to its target collection.
type Kind int

const (
	// KindAdd creates a new item from a field map.
	KindAdd Kind = iota
	// KindUpdate overwrites fields on an existing item.
	KindUpdate
	// KindDelete removes an existing item.
	KindDelete
	// KindAddValidated creates a new item through the service's
	// validate-and-write path, targeting a folder path.
	KindAddValidated
	// KindUpdateValidated updates an existing item through the service's
	// validate-and-write path.
	KindUpdateValidated
)

// String returns the kind name used in results and error messages.
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "Add"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	case KindAddValidated:
		return "AddValidated"
	case KindUpdateValidated:
		return "UpdateValidated"
	default:
		return "Unknown"
	}
}

// FormValue is one (internal name, value) pair for a validated write.
// Order is preserved because the service applies validation in sequence.
type FormValue struct {
	InternalName string
	Value        string
}

// Operation is one queued mutation. Values are immutable once queued; the
// engine only ever copies them into results.
type Operation struct {
	// ID correlates a result back to its operation. Assigned at queue
	// time, unique within one engine run.
	ID string

	// Collection is the target list name.
	Collection string

	Kind Kind

	// ItemID targets an existing item. Required for Update, Delete, and
	// UpdateValidated.
	ItemID int

	// Fields holds the name/value map for Add and Update.
	Fields map[string]any

	// FormValues holds the ordered pairs for validated writes.
	FormValues []FormValue

	// Path is the server-relative folder path for AddValidated.
	Path string

	// ConcurrencyToken, when set on Update or Delete, is passed through so
	// the service can reject stale writes.
	ConcurrencyToken string
}

// Validate checks the per-kind required-field set. The dispatcher runs it
// before registration, so a malformed operation fails its own result and
// never reaches a transaction.
func (op Operation) Validate() error {
	if op.Collection == "" {
		return errors.ErrMissingCollection
	}

	switch op.Kind {
	case KindAdd:
		if len(op.Fields) == 0 {
			return errors.ErrMissingFields
		}
	case KindUpdate:
		if op.ItemID <= 0 {
			return errors.ErrMissingItemID
		}
		if len(op.Fields) == 0 {
			return errors.ErrMissingFields
		}
	case KindDelete:
		if op.ItemID <= 0 {
			return errors.ErrMissingItemID
		}
	case KindAddValidated:
		if len(op.FormValues) == 0 {
			return errors.ErrMissingFormValues
		}
		if op.Path == "" {
			return errors.ErrMissingPath
		}
	case KindUpdateValidated:
		if op.ItemID <= 0 {
			return errors.ErrMissingItemID
		}
		if len(op.FormValues) == 0 {
			return errors.ErrMissingFormValues
		}
	default:
		return fmt.Errorf("unsupported operation kind: %d", op.Kind)
	}

	return nil
}

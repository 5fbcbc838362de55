package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/theory-cloud/listtheory/pkg/core"
	liberrors "github.com/theory-cloud/listtheory/pkg/errors"
	"github.com/theory-cloud/listtheory/pkg/operation"
)

// dispatchChunk executes one chunk as a single grouped transaction and
// produces exactly one result per operation, with failure isolation: a
// registration failure or a remote-reported failure on one operation never
// blocks its siblings, and a transport failure on Commit fails only the
// operations that were actually registered.
func dispatchChunk(ctx context.Context, client core.CollectionClient, chunk []operation.Operation, log *zap.Logger) []operation.Result {
	results := make([]operation.Result, len(chunk))
	handles := make([]*core.ResultHandle, len(chunk))

	tx := client.OpenBatch()

	registered := 0
	for i, op := range chunk {
		handle, err := registerOperation(tx, op)
		if err != nil {
			results[i] = failedResult(op, liberrors.NewOperationError(op.ID, op.Collection, op.Kind.String(), err))
			continue
		}
		handles[i] = handle
		registered++
	}

	if registered > 0 {
		if err := tx.Commit(ctx); err != nil {
			log.Warn("batch transaction commit failed",
				zap.Int("operations", registered),
				zap.Error(err))
			// Registration-time failures keep their original error; only
			// operations that made it into the round trip get the
			// transport error.
			for i, handle := range handles {
				if handle == nil {
					continue
				}
				results[i] = failedResult(chunk[i], &liberrors.TransactionError{
					Err:            err,
					Operation:      chunk[i].ID,
					Collection:     chunk[i].Collection,
					Reason:         err.Error(),
					OperationIndex: i,
				})
			}
			return results
		}
	}

	for i, handle := range handles {
		if handle == nil {
			continue
		}
		data, err, resolved := handle.Outcome()
		switch {
		case !resolved:
			results[i] = failedResult(chunk[i], fmt.Errorf("operation was not resolved by commit"))
		case err != nil:
			results[i] = failedResult(chunk[i], err)
		default:
			results[i] = successResult(chunk[i], data)
		}
	}

	return results
}

// registerOperation maps an operation onto the transaction's kind-specific
// registration call. Validation runs first so a malformed operation fails
// here, synchronously, and is never offered to the transaction.
func registerOperation(tx core.BatchTransaction, op operation.Operation) (*core.ResultHandle, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	switch op.Kind {
	case operation.KindAdd:
		return tx.AddItem(op.Collection, op.Fields)
	case operation.KindUpdate:
		return tx.UpdateItem(op.Collection, op.ItemID, op.Fields, op.ConcurrencyToken)
	case operation.KindDelete:
		return tx.DeleteItem(op.Collection, op.ItemID, op.ConcurrencyToken)
	case operation.KindAddValidated:
		return tx.AddValidated(op.Collection, op.FormValues, op.Path)
	case operation.KindUpdateValidated:
		return tx.UpdateValidated(op.Collection, op.ItemID, op.FormValues)
	default:
		return nil, fmt.Errorf("unsupported operation kind: %d", op.Kind)
	}
}

func successResult(op operation.Operation, data any) operation.Result {
	return operation.Result{
		OperationID: op.ID,
		Collection:  op.Collection,
		Kind:        op.Kind,
		ItemID:      op.ItemID,
		Success:     true,
		Data:        data,
	}
}

func failedResult(op operation.Operation, err error) operation.Result {
	return operation.Result{
		OperationID: op.ID,
		Collection:  op.Collection,
		Kind:        op.Kind,
		ItemID:      op.ItemID,
		Error:       err.Error(),
	}
}

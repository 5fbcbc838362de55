package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/listtheory/pkg/batch"
	ltErrors "github.com/theory-cloud/listtheory/pkg/errors"
	"github.com/theory-cloud/listtheory/pkg/mocks"
	"github.com/theory-cloud/listtheory/pkg/operation"
)

func TestExecuteEmptyRun(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 0, report.TotalOperations)
	assert.NotNil(t, report.Results)
	assert.Empty(t, report.Results)
	assert.Equal(t, 0, stub.Commits(), "empty run must not touch the network")
}

func TestExecuteNilClient(t *testing.T) {
	engine := batch.NewEngine(nil)
	engine.List("Tasks").Delete(1)

	report, err := engine.Execute(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ltErrors.ErrNilClient)
}

func TestExecuteSingleChunk(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").
		Add(map[string]any{"Title": "A"}).
		Update(7, map[string]any{"Title": "B"}, `W/"1"`).
		Delete(9)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 3, report.TotalOperations)
	assert.Equal(t, 3, report.SuccessfulOperations)
	assert.Equal(t, 0, report.FailedOperations)
	require.Len(t, report.Results, 3)

	assert.Equal(t, operation.KindAdd, report.Results[0].Kind)
	assert.Equal(t, operation.KindUpdate, report.Results[1].Kind)
	assert.Equal(t, operation.KindDelete, report.Results[2].Kind)

	require.Equal(t, 1, stub.Commits())
	tx := stub.Opened()[0]
	require.Len(t, tx.Calls, 3)
	assert.Equal(t, `W/"1"`, tx.Calls[1].Token)
	assert.Equal(t, 9, tx.Calls[2].ItemID)
	for _, call := range tx.Calls {
		assert.Equal(t, "Tasks", call.Collection)
	}
}

func TestExecuteIsolatesMalformedOperation(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").
		Add(map[string]any{"Title": "ok"}).
		Update(0, map[string]any{"Title": "broken"}).
		Delete(9)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, 3, report.TotalOperations)
	assert.Equal(t, 2, report.SuccessfulOperations)
	assert.Equal(t, 1, report.FailedOperations)

	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[1].Success)
	assert.Contains(t, report.Results[1].Error, "missing item id")
	assert.True(t, report.Results[2].Success)

	// The malformed operation never reached the transaction.
	require.Equal(t, 1, stub.Commits())
	assert.Len(t, stub.Opened()[0].Calls, 2)
}

func TestExecuteContainsTransportFailureToChunk(t *testing.T) {
	transportErr := errors.New("connection reset")
	stub := &mocks.StubClient{
		CommitErr: func(tx *mocks.StubTransaction) error {
			if tx.Index == 1 {
				return transportErr
			}
			return nil
		},
	}

	engine := batch.NewEngine(stub)
	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(1)})
	engine.List("Tasks").Delete(1).Delete(2).Delete(3)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stub.Commits(), "a failed chunk must not stop later chunks")
	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[1].Success)
	assert.Contains(t, report.Results[1].Error, "connection reset")
	assert.True(t, report.Results[2].Success)
	assert.Equal(t, 1, report.FailedOperations)
}

func TestRegistrationFailureKeepsItsErrorWhenCommitFails(t *testing.T) {
	transportErr := errors.New("connection reset")
	stub := &mocks.StubClient{
		CommitErr: func(*mocks.StubTransaction) error { return transportErr },
	}

	engine := batch.NewEngine(stub)
	engine.List("Tasks").
		Add(map[string]any{"Title": "ok"}).
		Update(0, map[string]any{"Title": "broken"}).
		Delete(9)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.FailedOperations)

	// The malformed operation keeps its registration error; only the two
	// registered operations carry the transport error.
	assert.Contains(t, report.Results[1].Error, "missing item id")
	assert.NotContains(t, report.Results[1].Error, "connection reset")
	assert.Contains(t, report.Results[0].Error, "connection reset")
	assert.Contains(t, report.Results[2].Error, "connection reset")

	assert.Equal(t, 1, stub.Commits())
	assert.Len(t, stub.Opened()[0].Calls, 2)
}

func TestAllMalformedChunkSkipsCommit(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").
		Update(0, map[string]any{"Title": "x"}).
		Delete(0)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalOperations)
	assert.Equal(t, 2, report.FailedOperations)
	assert.False(t, report.Success)

	// With nothing registered there is no round trip to make.
	assert.Equal(t, 0, stub.Commits())
	require.Len(t, stub.Opened(), 1)
	assert.False(t, stub.Opened()[0].Committed())
	assert.Empty(t, stub.Opened()[0].Calls)
}

func TestExecuteRemoteFailurePerOperation(t *testing.T) {
	stub := &mocks.StubClient{
		RemoteErr: func(call mocks.RecordedCall) error {
			if call.ItemID == 2 {
				return ltErrors.ErrConditionFailed
			}
			return nil
		},
	}

	engine := batch.NewEngine(stub)
	engine.List("Tasks").
		Delete(1).
		Delete(2, `W/"4"`).
		Delete(3)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.SuccessfulOperations)
	assert.Equal(t, 1, report.FailedOperations)
	assert.False(t, report.Results[1].Success)
	assert.Contains(t, report.Results[1].Error, "concurrency check failed")
}

func TestExecuteConcurrentNeverShortCircuits(t *testing.T) {
	stub := &mocks.StubClient{
		CommitErr: func(tx *mocks.StubTransaction) error {
			if len(tx.Calls) == 1 && tx.Calls[0].ItemID == 3 {
				return errors.New("boom")
			}
			return nil
		},
	}

	engine := batch.NewEngine(stub)
	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(1), Concurrent: boolPtr(true)})

	b := engine.List("Tasks")
	for i := 1; i <= 5; i++ {
		b.Delete(i)
	}

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stub.Commits())
	require.Len(t, report.Results, 5)

	// Results come back in enqueue order regardless of commit interleaving.
	for i, res := range report.Results {
		assert.Equal(t, i+1, res.ItemID)
	}
	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[2].Success)
	assert.True(t, report.Results[4].Success)
	assert.Equal(t, 1, report.FailedOperations)
}

func TestExecuteConcurrentCancelledBeforeFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)
	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(1), Concurrent: boolPtr(true)})
	engine.List("Tasks").Delete(1).Delete(2)

	report, err := engine.Execute(ctx)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stub.Commits(), "no chunk dispatches after pre-fan-out cancellation")
}

func TestExecuteSequentialCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	stub := &mocks.StubClient{
		CommitErr: func(tx *mocks.StubTransaction) error {
			if tx.Index == 0 {
				cancel()
			}
			return nil
		},
	}

	engine := batch.NewEngine(stub)
	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(1)})
	engine.List("Tasks").Delete(1).Delete(2).Delete(3)

	report, err := engine.Execute(ctx)
	assert.Nil(t, report, "cancellation yields a hard error, not a partial report")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.Commits(), "no chunk dispatches after cancellation")
}

func TestExecuteInvalidBatchSizeSurfacedOnExecute(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(0)})
	engine.List("Tasks").Delete(1)

	report, err := engine.Execute(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ltErrors.ErrInvalidBatchSize)
	assert.Equal(t, 0, stub.Commits())

	// The error is consumed; the engine is usable again.
	engine.List("Tasks").Delete(2)
	report, err = engine.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalOperations)
}

func TestUpdateConfigValid(t *testing.T) {
	engine := batch.NewEngine(&mocks.StubClient{})
	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(25), Concurrent: boolPtr(true)})

	cfg := engine.Config()
	assert.Equal(t, 25, cfg.BatchSize)
	assert.True(t, cfg.Concurrent)
}

func TestBatchSizeChangePreservesOperationIdentity(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").Delete(1).Delete(2).Delete(3)
	engine.UpdateConfig(batch.ConfigUpdate{BatchSize: intPtr(2)})

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalOperations)
	assert.Equal(t, 2, stub.Commits())
	assert.Len(t, stub.Opened()[0].Calls, 2)
	assert.Len(t, stub.Opened()[1].Calls, 1)
}

func TestExecuteResultsCorrelateByOperationID(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").Delete(1).Delete(2)
	engine.List("Docs").Add(map[string]any{"Title": "doc"})

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	seen := make(map[string]bool)
	for _, res := range report.Results {
		require.NotEmpty(t, res.OperationID)
		assert.False(t, seen[res.OperationID], "duplicate result for %s", res.OperationID)
		seen[res.OperationID] = true
	}
}

func TestSwitchingCollectionsPreservesEnqueueOrder(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").Delete(1)
	engine.List("Docs").Delete(2)
	engine.List("Tasks").Delete(3)

	report, err := engine.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	assert.Equal(t, "Tasks", report.Results[0].Collection)
	assert.Equal(t, 1, report.Results[0].ItemID)
	assert.Equal(t, "Docs", report.Results[1].Collection)
	assert.Equal(t, 2, report.Results[1].ItemID)
	assert.Equal(t, "Tasks", report.Results[2].Collection)
	assert.Equal(t, 3, report.Results[2].ItemID)
}

func TestEngineReusableAfterExecute(t *testing.T) {
	stub := &mocks.StubClient{}
	engine := batch.NewEngine(stub)

	engine.List("Tasks").Delete(1)
	first, err := engine.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalOperations)

	second, err := engine.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalOperations, "previous run's operations must not leak")

	engine.List("Tasks").Delete(2)
	third, err := engine.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.TotalOperations)
}

type captureArchiver struct {
	reports []*operation.Report
	err     error
}

func (a *captureArchiver) StoreReport(_ context.Context, report *operation.Report) error {
	a.reports = append(a.reports, report)
	return a.err
}

func TestExecuteArchivesReport(t *testing.T) {
	archiver := &captureArchiver{}
	engine := batch.NewEngine(&mocks.StubClient{}).WithArchiver(archiver)

	engine.List("Tasks").Delete(1)
	report, err := engine.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, archiver.reports, 1)
	assert.Equal(t, report, archiver.reports[0])
}

func TestExecuteArchiveFailureIsBestEffort(t *testing.T) {
	archiver := &captureArchiver{err: errors.New("bucket gone")}
	engine := batch.NewEngine(&mocks.StubClient{}).WithArchiver(archiver)

	engine.List("Tasks").Delete(1)
	report, err := engine.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success)
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

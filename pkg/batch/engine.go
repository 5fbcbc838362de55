// Package batch implements the batch-operation execution engine: fluent
// per-collection accumulators, order-preserving partitioning, grouped
// transaction dispatch with failure isolation, and aggregate reporting.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theory-cloud/listtheory/pkg/core"
	"github.com/theory-cloud/listtheory/pkg/errors"
	"github.com/theory-cloud/listtheory/pkg/operation"
)

// Config holds the engine's execution settings.
type Config struct {
	// BatchSize is the maximum number of operations per grouped
	// transaction. Defaults to DefaultBatchSize.
	BatchSize int `yaml:"batch_size"`

	// Concurrent dispatches all chunks at once instead of one at a time.
	// Concurrent mode trades ordering for throughput: chunks may commit in
	// any relative order, and cancellation is not observed once dispatch
	// has begun.
	Concurrent bool `yaml:"concurrent"`
}

// ConfigUpdate is a partial config change; nil fields are left untouched.
type ConfigUpdate struct {
	BatchSize  *int
	Concurrent *bool
}

// Archiver stores a completed report somewhere durable. The engine treats
// archiving as best-effort: an archive failure is logged, never surfaced.
type Archiver interface {
	StoreReport(ctx context.Context, report *operation.Report) error
}

// Engine is the batch orchestrator and the only type callers interact
// with directly. It owns the per-collection builders, flattens them in
// enqueue order, partitions, dispatches, and folds chunk outcomes into one
// report.
//
// An Engine is not safe for concurrent Execute calls; use one engine per
// logical batch session or synchronize externally. It is reusable: every
// Execute ends with the buffer and builders cleared.
type Engine struct {
	client   core.CollectionClient
	log      *zap.Logger
	archiver Archiver
	now      func() time.Time

	config   Config
	builders map[string]*ListBuilder
	current  string
	buffer   []operation.Operation
	err      error
}

// NewEngine creates an engine with default configuration: batch size 100,
// sequential dispatch.
func NewEngine(client core.CollectionClient) *Engine {
	return &Engine{
		client:   client,
		log:      zap.NewNop(),
		now:      time.Now,
		config:   Config{BatchSize: DefaultBatchSize},
		builders: make(map[string]*ListBuilder),
	}
}

// WithLogger sets the engine's logger. The default logger discards
// everything.
func (e *Engine) WithLogger(log *zap.Logger) *Engine {
	if log != nil {
		e.log = log
	}
	return e
}

// WithArchiver configures best-effort report archiving after each run.
func (e *Engine) WithArchiver(a Archiver) *Engine {
	e.archiver = a
	return e
}

// WithClock overrides the timestamp source used for operation IDs.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Config returns the current execution settings.
func (e *Engine) Config() Config {
	return e.config
}

// UpdateConfig applies a partial config change. Changing the batch size
// affects only future partitioning, never the identity of already-queued
// operations. An invalid batch size is recorded and surfaced as a hard
// error on the next Execute.
func (e *Engine) UpdateConfig(update ConfigUpdate) *Engine {
	if update.BatchSize != nil {
		if *update.BatchSize < 1 {
			e.recordError(errors.ErrInvalidBatchSize)
		} else {
			e.config.BatchSize = *update.BatchSize
		}
	}
	if update.Concurrent != nil {
		e.config.Concurrent = *update.Concurrent
	}
	return e
}

// List returns the operation builder for the named collection, creating it
// on first use. Any operations still held by the most-recently-used
// builder are folded into the engine's flat buffer first, so switching
// collections (or re-entering the same one) never drops queued work.
func (e *Engine) List(name string) *ListBuilder {
	e.drainCurrent()

	builder, ok := e.builders[name]
	if !ok {
		builder = newListBuilder(name, e.now)
		e.builders[name] = builder
	}
	e.current = name
	return builder
}

// Execute drains every builder, partitions the flat buffer, dispatches the
// chunks, and returns the aggregate report. Executing with nothing queued
// returns an empty success report without touching the network.
//
// Only infrastructure-level conditions escape as a hard error: a nil
// client, invalid configuration, and context cancellation in sequential
// mode. Per-operation failures are always carried in the report.
func (e *Engine) Execute(ctx context.Context) (*operation.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ops, cfg, err := e.drainForRun()
	if err != nil {
		return nil, err
	}
	if e.client == nil {
		return nil, errors.ErrNilClient
	}
	if len(ops) == 0 {
		return operation.EmptyReport(), nil
	}

	chunks := Partition(ops, cfg.BatchSize)
	e.log.Debug("executing batch run",
		zap.Int("operations", len(ops)),
		zap.Int("chunks", len(chunks)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Bool("concurrent", cfg.Concurrent))

	var results []operation.Result
	if cfg.Concurrent {
		// The context is honored up to the fan-out; once goroutines launch,
		// every chunk runs to completion and reports.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = e.dispatchConcurrent(ctx, chunks, len(ops))
	} else {
		results, err = e.dispatchSequential(ctx, chunks, len(ops))
		if err != nil {
			return nil, err
		}
	}

	report := operation.NewReport(results)
	e.log.Info("batch run complete",
		zap.Int("total", report.TotalOperations),
		zap.Int("succeeded", report.SuccessfulOperations),
		zap.Int("failed", report.FailedOperations))

	e.archive(ctx, report)
	return report, nil
}

// dispatchSequential executes chunks one at a time, in order. The context
// is checked at each chunk boundary, never mid-chunk: a chunk is one
// indivisible round trip. Cancellation aborts the whole run; completed
// chunks are not reported.
func (e *Engine) dispatchSequential(ctx context.Context, chunks [][]operation.Operation, total int) ([]operation.Result, error) {
	results := make([]operation.Result, 0, total)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			e.log.Warn("batch run canceled",
				zap.Int("chunks_dispatched", i),
				zap.Int("chunks_remaining", len(chunks)-i))
			return nil, err
		}
		e.log.Debug("dispatching chunk", zap.Int("chunk", i), zap.Int("size", len(chunk)))
		results = append(results, dispatchChunk(ctx, e.client, chunk, e.log)...)
	}
	return results, nil
}

// dispatchConcurrent fans out one goroutine per chunk and waits for all of
// them regardless of individual outcomes. Results are reassembled in chunk
// order, so the report still mirrors enqueue order even though commits may
// interleave on the wire.
func (e *Engine) dispatchConcurrent(ctx context.Context, chunks [][]operation.Operation, total int) []operation.Result {
	chunkResults := make([][]operation.Result, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []operation.Operation) {
			defer wg.Done()
			chunkResults[i] = dispatchChunk(ctx, e.client, chunk, e.log)
		}(i, chunk)
	}
	wg.Wait()

	results := make([]operation.Result, 0, total)
	for _, cr := range chunkResults {
		results = append(results, cr...)
	}
	return results
}

// drainForRun flattens every builder into the buffer, then hands the
// buffer off and resets the engine so it is immediately reusable. A
// recorded configuration error is surfaced here, once, and cleared.
func (e *Engine) drainForRun() ([]operation.Operation, Config, error) {
	e.drainCurrent()
	for _, name := range sortedBuilderNames(e.builders) {
		if b := e.builders[name]; b.Len() > 0 {
			e.buffer = append(e.buffer, b.Drain()...)
		}
	}

	ops := e.buffer
	cfg := e.config
	err := e.err

	e.buffer = nil
	e.builders = make(map[string]*ListBuilder)
	e.current = ""
	e.err = nil

	return ops, cfg, err
}

func (e *Engine) drainCurrent() {
	if e.current == "" {
		return
	}
	if b := e.builders[e.current]; b != nil && b.Len() > 0 {
		e.buffer = append(e.buffer, b.Drain()...)
	}
	e.current = ""
}

func (e *Engine) archive(ctx context.Context, report *operation.Report) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.StoreReport(ctx, report); err != nil {
		e.log.Warn("failed to archive batch report", zap.Error(err))
	}
}

func (e *Engine) recordError(err error) {
	if err != nil && e.err == nil {
		e.err = err
	}
}

// sortedBuilderNames keeps the flatten order deterministic for builders
// that were never current when Execute ran. In practice drainCurrent has
// already folded everything in usage order; this pass only catches
// builders abandoned mid-session.
func sortedBuilderNames(builders map[string]*ListBuilder) []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

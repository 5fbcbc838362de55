// Package listtheory provides a batch-operation execution engine for
// list-style remote collections in Go.
//
// Import path:
//
//	import "github.com/theory-cloud/listtheory"
//
// Callers queue create/update/delete/validated-write operations against
// named collections through fluent builders, then Execute partitions the
// queue into network-safe chunks, runs each chunk as one grouped
// transaction, and returns a per-operation report that tolerates partial
// failure. Implementation lives in pkg/ so the repo root stays minimal.
package listtheory

import (
	"github.com/theory-cloud/listtheory/pkg/batch"
	"github.com/theory-cloud/listtheory/pkg/core"
	"github.com/theory-cloud/listtheory/pkg/dynamostore"
	"github.com/theory-cloud/listtheory/pkg/operation"
	"github.com/theory-cloud/listtheory/pkg/session"
)

type (
	// BatchBuilder is the batch orchestrator callers interact with.
	BatchBuilder = batch.Engine

	// ListBuilder is the fluent per-collection operation queue.
	ListBuilder = batch.ListBuilder

	// Re-export types for convenience.
	Config       = session.Config
	ConfigUpdate = batch.ConfigUpdate
	Operation    = operation.Operation
	FormValue    = operation.FormValue
	Result       = operation.Result
	BatchError   = operation.BatchError
	Report       = operation.Report

	CollectionClient = core.CollectionClient
	BatchTransaction = core.BatchTransaction
)

// New creates a batch engine backed by the DynamoDB collection store
// described by config.
func New(cfg *session.Config) (*BatchBuilder, error) {
	if cfg == nil {
		cfg = session.DefaultConfig()
	}

	client, err := dynamostore.New(cfg)
	if err != nil {
		return nil, err
	}

	engine := batch.NewEngine(client)
	applyEngineConfig(engine, cfg)
	return engine, nil
}

// NewWithClient creates a batch engine over any collection client
// implementation.
func NewWithClient(client CollectionClient) *BatchBuilder {
	return batch.NewEngine(client)
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return session.LoadConfig(path)
}

// ETag formats an item version as a concurrency token.
func ETag(version int64) string {
	return operation.ETag(version)
}

// ParseETag extracts the numeric version from a concurrency token.
func ParseETag(token string) (int64, error) {
	return operation.ParseETag(token)
}

func applyEngineConfig(engine *batch.Engine, cfg *session.Config) {
	update := batch.ConfigUpdate{}
	if cfg.BatchSize > 0 {
		update.BatchSize = &cfg.BatchSize
	}
	if cfg.Concurrent {
		update.Concurrent = &cfg.Concurrent
	}
	engine.UpdateConfig(update)
}

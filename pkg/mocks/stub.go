package mocks

import (
	"context"
	"sync"

	"github.com/theory-cloud/listtheory/pkg/core"
	"github.com/theory-cloud/listtheory/pkg/operation"
)

// RecordedCall captures one registration made against a stub transaction.
type RecordedCall struct {
	Collection string
	Kind       operation.Kind
	ItemID     int
	Fields     map[string]any
	FormValues []operation.FormValue
	Path       string
	Token      string
}

// StubClient is an in-memory core.CollectionClient whose behavior is
// scripted through optional hook functions. With no hooks set, every call
// succeeds with a small payload. Safe for concurrent OpenBatch and Commit.
type StubClient struct {
	mu     sync.Mutex
	opened []*StubTransaction

	// RegisterErr, when set, is consulted at registration time; a non-nil
	// return rejects the call synchronously.
	RegisterErr func(call RecordedCall) error

	// RemoteErr, when set, is consulted at commit time per registered
	// call; a non-nil return resolves that call's handle as failed.
	RemoteErr func(call RecordedCall) error

	// CommitErr, when set, is consulted once per transaction at commit;
	// a non-nil return fails the whole round trip and leaves every handle
	// unresolved.
	CommitErr func(tx *StubTransaction) error

	// Payload, when set, supplies the success payload per call; defaults
	// to a map carrying the item ID.
	Payload func(call RecordedCall) any

	commits int
}

// OpenBatch opens a new stub transaction.
func (c *StubClient) OpenBatch() core.BatchTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &StubTransaction{client: c, Index: len(c.opened)}
	c.opened = append(c.opened, tx)
	return tx
}

// Opened returns every transaction opened so far, in open order.
func (c *StubClient) Opened() []*StubTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*StubTransaction(nil), c.opened...)
}

// Commits returns how many transactions reached Commit.
func (c *StubClient) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

func (c *StubClient) recordCommit() {
	c.mu.Lock()
	c.commits++
	c.mu.Unlock()
}

// StubTransaction records registrations and resolves them at Commit
// according to the client's hooks.
type StubTransaction struct {
	client *StubClient

	// Index is the transaction's position in open order.
	Index int

	// Calls are the registrations accepted by this transaction.
	Calls []RecordedCall

	handles   []*core.ResultHandle
	committed bool
}

// Committed reports whether Commit ran on this transaction.
func (t *StubTransaction) Committed() bool {
	return t.committed
}

func (t *StubTransaction) register(call RecordedCall) (*core.ResultHandle, error) {
	if t.client.RegisterErr != nil {
		if err := t.client.RegisterErr(call); err != nil {
			return nil, err
		}
	}

	handle := &core.ResultHandle{}
	t.Calls = append(t.Calls, call)
	t.handles = append(t.handles, handle)
	return handle, nil
}

// AddItem registers an item create.
func (t *StubTransaction) AddItem(collection string, fields map[string]any) (*core.ResultHandle, error) {
	return t.register(RecordedCall{Collection: collection, Kind: operation.KindAdd, Fields: fields})
}

// UpdateItem registers a field-map update.
func (t *StubTransaction) UpdateItem(collection string, itemID int, fields map[string]any, concurrencyToken string) (*core.ResultHandle, error) {
	return t.register(RecordedCall{
		Collection: collection,
		Kind:       operation.KindUpdate,
		ItemID:     itemID,
		Fields:     fields,
		Token:      concurrencyToken,
	})
}

// DeleteItem registers an item delete.
func (t *StubTransaction) DeleteItem(collection string, itemID int, concurrencyToken string) (*core.ResultHandle, error) {
	return t.register(RecordedCall{
		Collection: collection,
		Kind:       operation.KindDelete,
		ItemID:     itemID,
		Token:      concurrencyToken,
	})
}

// AddValidated registers a validate-and-create.
func (t *StubTransaction) AddValidated(collection string, formValues []operation.FormValue, path string) (*core.ResultHandle, error) {
	return t.register(RecordedCall{
		Collection: collection,
		Kind:       operation.KindAddValidated,
		FormValues: formValues,
		Path:       path,
	})
}

// UpdateValidated registers a validate-and-update.
func (t *StubTransaction) UpdateValidated(collection string, itemID int, formValues []operation.FormValue) (*core.ResultHandle, error) {
	return t.register(RecordedCall{
		Collection: collection,
		Kind:       operation.KindUpdateValidated,
		ItemID:     itemID,
		FormValues: formValues,
	})
}

// Commit resolves every registered call, or fails wholesale when the
// CommitErr hook rejects the round trip.
func (t *StubTransaction) Commit(_ context.Context) error {
	t.committed = true
	t.client.recordCommit()

	if t.client.CommitErr != nil {
		if err := t.client.CommitErr(t); err != nil {
			return err
		}
	}

	for i, call := range t.Calls {
		if t.client.RemoteErr != nil {
			if err := t.client.RemoteErr(call); err != nil {
				t.handles[i].Fail(err)
				continue
			}
		}

		if t.client.Payload != nil {
			t.handles[i].Resolve(t.client.Payload(call))
			continue
		}
		t.handles[i].Resolve(map[string]any{"ID": call.ItemID})
	}

	return nil
}

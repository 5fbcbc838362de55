package batch

import (
	"fmt"
	"time"

	"github.com/theory-cloud/listtheory/pkg/operation"
)

// ListBuilder is the fluent, per-collection operation queue. Builders are
// handed out by Engine.List and drained by the engine when the caller
// switches collections or executes.
//
// A malformed operation (missing item ID, empty field map, and so on) is
// still queued: it is guaranteed a failed result in the report, correlated
// by operation ID, and is never registered against the remote service.
type ListBuilder struct {
	collection string
	seq        int
	queue      []operation.Operation
	now        func() time.Time
}

func newListBuilder(collection string, now func() time.Time) *ListBuilder {
	if now == nil {
		now = time.Now
	}
	return &ListBuilder{collection: collection, now: now}
}

// Collection returns the list name this builder targets.
func (b *ListBuilder) Collection() string {
	return b.collection
}

// Add queues an item create from a field map.
func (b *ListBuilder) Add(fields map[string]any) *ListBuilder {
	b.enqueue(operation.Operation{
		Kind:   operation.KindAdd,
		Fields: fields,
	})
	return b
}

// Update queues a field-map update of an existing item. An optional
// concurrency token makes the write conditional on the item being
// unchanged since the token was read.
func (b *ListBuilder) Update(itemID int, fields map[string]any, concurrencyToken ...string) *ListBuilder {
	b.enqueue(operation.Operation{
		Kind:             operation.KindUpdate,
		ItemID:           itemID,
		Fields:           fields,
		ConcurrencyToken: firstToken(concurrencyToken),
	})
	return b
}

// Delete queues an item delete, optionally conditional on a concurrency
// token.
func (b *ListBuilder) Delete(itemID int, concurrencyToken ...string) *ListBuilder {
	b.enqueue(operation.Operation{
		Kind:             operation.KindDelete,
		ItemID:           itemID,
		ConcurrencyToken: firstToken(concurrencyToken),
	})
	return b
}

// AddValidated queues a validate-and-create at the given folder path using
// ordered form field values.
func (b *ListBuilder) AddValidated(formValues []operation.FormValue, path string) *ListBuilder {
	b.enqueue(operation.Operation{
		Kind:       operation.KindAddValidated,
		FormValues: append([]operation.FormValue(nil), formValues...),
		Path:       path,
	})
	return b
}

// UpdateValidated queues a validate-and-update of an existing item.
func (b *ListBuilder) UpdateValidated(itemID int, formValues []operation.FormValue) *ListBuilder {
	b.enqueue(operation.Operation{
		Kind:       operation.KindUpdateValidated,
		ItemID:     itemID,
		FormValues: append([]operation.FormValue(nil), formValues...),
	})
	return b
}

// Len reports how many operations are queued and not yet drained.
func (b *ListBuilder) Len() int {
	return len(b.queue)
}

// Drain returns the queued operations and clears the queue. The sequence
// counter keeps advancing so IDs stay unique across drains.
func (b *ListBuilder) Drain() []operation.Operation {
	drained := b.queue
	b.queue = nil
	return drained
}

func (b *ListBuilder) enqueue(op operation.Operation) {
	op.Collection = b.collection
	op.ID = b.nextID()
	b.queue = append(b.queue, op)
}

// nextID derives an operation ID from the collection, a monotonic
// per-builder counter, and the queue timestamp. The counter alone
// guarantees uniqueness within a run; a collision would be a logic bug,
// not a condition to guard against.
func (b *ListBuilder) nextID() string {
	b.seq++
	return fmt.Sprintf("%s-%d-%d", b.collection, b.seq, b.now().UnixNano())
}

func firstToken(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/listtheory/pkg/operation"
)

func makeOps(n int) []operation.Operation {
	ops := make([]operation.Operation, n)
	for i := range ops {
		ops[i] = operation.Operation{
			ID:         fmt.Sprintf("Tasks-%d-0", i+1),
			Collection: "Tasks",
			Kind:       operation.KindDelete,
			ItemID:     i + 1,
		}
	}
	return ops
}

func TestPartitionEmpty(t *testing.T) {
	assert.Nil(t, Partition(nil, 10))
	assert.Nil(t, Partition([]operation.Operation{}, 10))
}

func TestPartitionChunkSizes(t *testing.T) {
	tests := []struct {
		n         int
		batchSize int
		wantLens  []int
	}{
		{n: 1, batchSize: 1, wantLens: []int{1}},
		{n: 5, batchSize: 2, wantLens: []int{2, 2, 1}},
		{n: 6, batchSize: 2, wantLens: []int{2, 2, 2}},
		{n: 3, batchSize: 100, wantLens: []int{3}},
		{n: 100, batchSize: 100, wantLens: []int{100}},
		{n: 101, batchSize: 100, wantLens: []int{100, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tt.n, tt.batchSize), func(t *testing.T) {
			chunks := Partition(makeOps(tt.n), tt.batchSize)
			require.Len(t, chunks, len(tt.wantLens))
			for i, want := range tt.wantLens {
				assert.Len(t, chunks[i], want)
			}
		})
	}
}

func TestPartitionConcatenationReproducesInput(t *testing.T) {
	for _, batchSize := range []int{1, 2, 3, 7, 50} {
		ops := makeOps(23)
		chunks := Partition(ops, batchSize)

		var flat []operation.Operation
		for _, chunk := range chunks {
			flat = append(flat, chunk...)
		}

		require.Len(t, flat, len(ops), "batchSize=%d", batchSize)
		assert.Equal(t, ops, flat, "batchSize=%d", batchSize)
	}
}

func TestPartitionNoDuplicates(t *testing.T) {
	chunks := Partition(makeOps(17), 4)

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, op := range chunk {
			assert.False(t, seen[op.ID], "operation %s appears twice", op.ID)
			seen[op.ID] = true
		}
	}
	assert.Len(t, seen, 17)
}

func TestPartitionClampsInvalidBatchSize(t *testing.T) {
	chunks := Partition(makeOps(3), 0)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Len(t, chunk, 1)
	}
}

package batch

import "github.com/theory-cloud/listtheory/pkg/operation"

// DefaultBatchSize is the chunk size used when none is configured.
const DefaultBatchSize = 100

// Partition splits operations into chunks of at most batchSize, preserving
// input order. Every chunk except possibly the last is exactly batchSize
// long, and concatenating the chunks reproduces the input. Chunks share the
// input's backing array; callers must not mutate them.
func Partition(ops []operation.Operation, batchSize int) [][]operation.Operation {
	if len(ops) == 0 {
		return nil
	}
	if batchSize < 1 {
		batchSize = 1
	}

	chunks := make([][]operation.Operation, 0, (len(ops)+batchSize-1)/batchSize)
	for i := 0; i < len(ops); i += batchSize {
		end := i + batchSize
		if end > len(ops) {
			end = len(ops)
		}
		chunks = append(chunks, ops[i:end])
	}

	return chunks
}

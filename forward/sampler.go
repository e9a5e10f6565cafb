package forward

import (
	"sort"
)

// BatchSampler groups dataset indices into batches of examples with
// similar sequence lengths, so that padding each batch to its longest
// example wastes as few frames as possible. Indices are sorted ascending
// by length; ties keep dataset order, so repeated passes over the same
// dataset yield identical batches.
type BatchSampler struct {
	batches [][]int
}

// NewBatchSampler sorts the example indices of sizes ascending and cuts
// the sorted list into contiguous chunks of batchSize. The final short
// chunk is discarded when dropLast is set.
func NewBatchSampler(sizes []int, batchSize int, dropLast bool) *BatchSampler {
	indices := make([]int, len(sizes))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return sizes[indices[a]] < sizes[indices[b]]
	})

	batches := make([][]int, 0, (len(indices)+batchSize-1)/batchSize)
	for start := 0; start < len(indices); start += batchSize {
		end := start + batchSize
		if end > len(indices) {
			end = len(indices)
		}
		batches = append(batches, indices[start:end])
	}
	if dropLast && len(batches) > 0 && len(batches[len(batches)-1]) < batchSize {
		batches = batches[:len(batches)-1]
	}

	return &BatchSampler{batches: batches}
}

// Len returns the number of batches the sampler will yield.
func (s *BatchSampler) Len() int {
	return len(s.batches)
}

// Iter returns a one-shot iterator over the index batches. A new pass
// requires a new iterator; the underlying batches are identical each time.
func (s *BatchSampler) Iter() *BatchIter {
	return &BatchIter{batches: s.batches}
}

// BatchIter yields index batches in ascending-length order.
type BatchIter struct {
	batches [][]int
	next    int
}

// Next returns the next index batch, or nil and false when exhausted.
func (it *BatchIter) Next() ([]int, bool) {
	if it.next >= len(it.batches) {
		return nil, false
	}
	batch := it.batches[it.next]
	it.next++
	return batch, true
}

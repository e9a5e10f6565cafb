package forward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// rampSequence builds a seqLen x dim matrix whose frame t is filled with
// float64(t), so padding is easy to distinguish from data.
func rampSequence(seqLen, dim int) *mat.Dense {
	seq := mat.NewDense(seqLen, dim, nil)
	for t := 0; t < seqLen; t++ {
		for j := 0; j < dim; j++ {
			seq.Set(t, j, float64(t))
		}
	}
	return seq
}

func pairedDataset(cpLens ...int) *Dataset {
	dataset := &Dataset{}
	for _, cpLen := range cpLens {
		dataset.examples = append(dataset.examples, Example{
			CP:      rampSequence(cpLen, 2),
			Melspec: rampSequence(cpLen/2, 1),
		})
	}
	return dataset
}

func TestCollatePadsToBatchMax(t *testing.T) {
	dataset := pairedDataset(6, 4, 10)

	batch, err := Collate(dataset, []int{0, 1, 2})
	assert.Nil(t, err)

	for i := range batch.CP {
		cpLen, _ := batch.CP[i].Dims()
		melLen, _ := batch.Melspec[i].Dims()
		assert.Equal(t, 10, cpLen, "example %d", i)
		assert.Equal(t, 5, melLen, "example %d", i)
		assert.Len(t, batch.Mask[i], 10)
	}

	// Mask of the length-4 example at articulatory scale
	assert.Equal(t,
		[]bool{true, true, true, true, false, false, false, false, false, false},
		batch.Mask[1])

	// Padding repeats the final frame
	assert.Equal(t, 3.0, batch.CP[1].At(3, 0))
	assert.Equal(t, 3.0, batch.CP[1].At(9, 0))
	assert.Equal(t, 1.0, batch.Melspec[1].At(4, 0))
}

func TestCollateFullLengthExampleUnmasked(t *testing.T) {
	dataset := pairedDataset(6, 4)

	batch, err := Collate(dataset, []int{0, 1})
	assert.Nil(t, err)

	assert.Equal(t, []bool{true, true, true, true, true, true}, batch.Mask[0])
}

func TestCollateSingleIndexBatch(t *testing.T) {
	dataset := pairedDataset(8)

	batch, err := Collate(dataset, []int{0})
	assert.Nil(t, err)

	cpLen, _ := batch.CP[0].Dims()
	melLen, _ := batch.Melspec[0].Dims()
	assert.Equal(t, 8, cpLen)
	assert.Equal(t, 4, melLen)
}

func TestCollateEmptyBatch(t *testing.T) {
	_, err := Collate(pairedDataset(4), nil)
	assert.NotNil(t, err)
}

func TestPadSequenceRejectsOversized(t *testing.T) {
	seq := rampSequence(6, 2)

	_, _, err := PadSequence(seq, 4)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestCollateRejectsRatioViolation(t *testing.T) {
	// A melspec longer than maxCP/2 can only come from a broken 2:1 ratio
	dataset := &Dataset{examples: []Example{
		{CP: rampSequence(4, 2), Melspec: rampSequence(2, 1)},
		{CP: rampSequence(2, 2), Melspec: rampSequence(3, 1)},
	}}

	_, err := Collate(dataset, []int{0, 1})
	assert.NotNil(t, err)
}

// Package forward trains the forward model: a sequence model mapping
// normalized articulatory trajectories (T x 30) to normalized synthesized
// mel-spectrogram trajectories (T/2 x 60). Batching orders examples by
// sequence length and pads each batch to a uniform shape.
package forward

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/phonlab/artimel"
	"github.com/phonlab/artimel/internal/pkg/artfs"
)

// CPDim is the articulatory feature dimension of every cp_norm frame.
const CPDim = 30

// MelDim is the mel-spectrogram feature dimension of every melspec frame.
const MelDim = 60

// Example is one paired training sequence. The articulatory trajectory
// always has exactly twice as many frames as the spectrogram; the ratio is
// validated when the dataset is built and again by the collator.
type Example struct {
	CP      *mat.Dense // cpLen x CPDim
	Melspec *mat.Dense // cpLen/2 x MelDim
}

// Dataset holds the examples of one partitioned shard in row order.
type Dataset struct {
	examples []Example
}

// NewDataset converts partitioned rows into matrix pairs. The synthesized
// spectrogram is the training target. Rows violating the 2:1 length ratio
// indicate upstream corruption and fail the whole shard.
func NewDataset(rows []artimel.Row) (*Dataset, error) {
	examples := make([]Example, 0, len(rows))
	for i, row := range rows {
		cp, err := denseFromFrames(row.CPNorm, CPDim)
		if err != nil {
			return nil, errors.Wrapf(err, "cp_norm of row %d (%q)", i, row.LexicalWord)
		}
		melspec, err := denseFromFrames(row.MelspecSynthesized, MelDim)
		if err != nil {
			return nil, errors.Wrapf(err, "melspec of row %d (%q)", i, row.LexicalWord)
		}

		cpLen, _ := cp.Dims()
		melLen, _ := melspec.Dims()
		if cpLen != 2*melLen {
			return nil, errors.Errorf(
				"row %d (%q) breaks the length ratio: %d cp frames vs %d melspec frames",
				i, row.LexicalWord, cpLen, melLen)
		}
		examples = append(examples, Example{CP: cp, Melspec: melspec})
	}
	return &Dataset{examples: examples}, nil
}

// LoadDataset reads one partitioned shard and converts it.
func LoadDataset(fs artfs.FileSystem, shardPath string) (*Dataset, error) {
	rows, err := artimel.ReadShard(fs, shardPath)
	if err != nil {
		return nil, err
	}
	return NewDataset(rows)
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.examples)
}

// At returns the example at index i.
func (d *Dataset) At(i int) Example {
	return d.examples[i]
}

// SequenceLengths returns each example's articulatory frame count, in
// dataset order. The batch sampler sorts on these.
func (d *Dataset) SequenceLengths() []int {
	lengths := make([]int, len(d.examples))
	for i, example := range d.examples {
		rows, _ := example.CP.Dims()
		lengths[i] = rows
	}
	return lengths
}

func denseFromFrames(frames [][]float64, dim int) (*mat.Dense, error) {
	if len(frames) == 0 {
		return nil, errors.New("empty sequence")
	}
	dense := mat.NewDense(len(frames), dim, nil)
	for t, frame := range frames {
		if len(frame) != dim {
			return nil, errors.Errorf("frame %d has %d features, want %d", t, len(frame), dim)
		}
		dense.SetRow(t, frame)
	}
	return dense, nil
}

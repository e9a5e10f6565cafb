package forward

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Batch is a padded, batch-uniform stack of sequence pairs. CP holds one
// cpLen x CPDim matrix per example and Melspec one cpLen/2 x MelDim matrix,
// all padded to the batch maximum. Mask flags original frames (true) vs
// padding (false) at the articulatory frame scale; it is computed for every
// batch even when the criterion ignores it.
type Batch struct {
	CP      []*mat.Dense
	Melspec []*mat.Dense
	Mask    [][]bool
}

// Collate pads the selected examples to the batch's maximum articulatory
// length. The spectrogram target length is exactly half the articulatory
// one, mirroring the model's half-sequence output contract.
func Collate(dataset *Dataset, indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, errors.New("empty batch")
	}

	maxCPLen := 0
	for _, idx := range indices {
		cpLen, _ := dataset.At(idx).CP.Dims()
		if cpLen > maxCPLen {
			maxCPLen = cpLen
		}
	}
	maxMelLen := maxCPLen / 2

	batch := &Batch{
		CP:      make([]*mat.Dense, 0, len(indices)),
		Melspec: make([]*mat.Dense, 0, len(indices)),
		Mask:    make([][]bool, 0, len(indices)),
	}
	for _, idx := range indices {
		example := dataset.At(idx)

		paddedCP, mask, err := PadSequence(example.CP, maxCPLen)
		if err != nil {
			return nil, errors.Wrapf(err, "padding cp of example %d", idx)
		}
		paddedMelspec, _, err := PadSequence(example.Melspec, maxMelLen)
		if err != nil {
			return nil, errors.Wrapf(err, "padding melspec of example %d", idx)
		}

		batch.CP = append(batch.CP, paddedCP)
		batch.Melspec = append(batch.Melspec, paddedMelspec)
		batch.Mask = append(batch.Mask, mask)
	}
	return batch, nil
}

// PadSequence extends seq to targetLen frames by repeating its final frame,
// returning the padded matrix and a validity mask (true for original
// frames). A sequence longer than targetLen means the batch's length
// bookkeeping is wrong upstream; it is an error, never a truncation.
func PadSequence(seq *mat.Dense, targetLen int) (*mat.Dense, []bool, error) {
	seqLen, dim := seq.Dims()
	if seqLen > targetLen {
		return nil, nil, errors.Errorf("sequence length %d exceeds target %d", seqLen, targetLen)
	}

	mask := make([]bool, targetLen)
	for t := 0; t < seqLen; t++ {
		mask[t] = true
	}
	if seqLen == targetLen {
		return seq, mask, nil
	}

	padded := mat.NewDense(targetLen, dim, nil)
	padded.Slice(0, seqLen, 0, dim).(*mat.Dense).Copy(seq)
	lastFrame := seq.RawRowView(seqLen - 1)
	for t := seqLen; t < targetLen; t++ {
		padded.SetRow(t, lastFrame)
	}
	return padded, mask, nil
}

package forward

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func testModel() *LinearForwardModel {
	return NewLinearForwardModel(rand.New(rand.NewSource(1)))
}

func randomSequence(rng *rand.Rand, seqLen, dim int) *mat.Dense {
	seq := mat.NewDense(seqLen, dim, nil)
	for t := 0; t < seqLen; t++ {
		for j := 0; j < dim; j++ {
			seq.Set(t, j, rng.NormFloat64())
		}
	}
	return seq
}

func TestHalveSequence(t *testing.T) {
	seq := mat.NewDense(4, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
	})

	halved, err := halveSequence(seq)
	assert.Nil(t, err)

	rows, cols := halved.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 2.0, halved.At(0, 0))
	assert.Equal(t, 3.0, halved.At(0, 1))
	assert.Equal(t, 6.0, halved.At(1, 0))
	assert.Equal(t, 7.0, halved.At(1, 1))
}

func TestHalveSequenceOddLength(t *testing.T) {
	_, err := halveSequence(mat.NewDense(3, 2, nil))
	assert.NotNil(t, err)
}

func TestModelForwardShapes(t *testing.T) {
	model := testModel()
	rng := rand.New(rand.NewSource(2))

	batch := []*mat.Dense{
		randomSequence(rng, 8, CPDim),
		randomSequence(rng, 8, CPDim),
	}
	outputs, err := model.Forward(batch)
	assert.Nil(t, err)
	assert.Len(t, outputs, 2)

	for _, out := range outputs {
		rows, cols := out.Dims()
		assert.Equal(t, 4, rows, "output length is half the input length")
		assert.Equal(t, MelDim, cols)
	}
}

func TestModelForwardRejectsWrongWidth(t *testing.T) {
	model := testModel()
	_, err := model.Forward([]*mat.Dense{mat.NewDense(4, 7, nil)})
	assert.NotNil(t, err)
}

func TestModelNumParams(t *testing.T) {
	assert.Equal(t, CPDim*MelDim+MelDim, testModel().NumParams())
}

func TestModelStateRoundtrip(t *testing.T) {
	model := testModel()
	state := model.State()

	restored := NewLinearForwardModel(rand.New(rand.NewSource(99)))
	assert.Nil(t, restored.SetState(state))
	assert.Equal(t, state, restored.State())

	// Missing tensors are rejected
	assert.NotNil(t, restored.SetState(map[string][]float64{}))
}

func TestTrainingStepReducesLoss(t *testing.T) {
	model := testModel()
	criterion := NewRMSELoss()
	optimizer := NewAdam(1e-2)
	rng := rand.New(rand.NewSource(3))

	cp := []*mat.Dense{randomSequence(rng, 6, CPDim)}
	target := []*mat.Dense{randomSequence(rng, 3, MelDim)}

	initial, err := func() (float64, error) {
		predicted, err := model.Forward(cp)
		if err != nil {
			return 0, err
		}
		return criterion.Loss(predicted, target)
	}()
	assert.Nil(t, err)

	for step := 0; step < 50; step++ {
		model.ZeroGrad()
		predicted, err := model.Forward(cp)
		assert.Nil(t, err)

		grad, err := criterion.Grad(predicted, target)
		assert.Nil(t, err)
		assert.Nil(t, model.Backward(grad))
		assert.Nil(t, optimizer.Step(model.Params(), model.Grads()))
	}

	predicted, err := model.Forward(cp)
	assert.Nil(t, err)
	final, err := criterion.Loss(predicted, target)
	assert.Nil(t, err)

	assert.True(t, final < initial, "loss %f did not improve on %f", final, initial)
}

func TestAdamStepMismatchedTensors(t *testing.T) {
	optimizer := NewAdam(1e-3)
	params := []*mat.Dense{mat.NewDense(1, 1, nil)}
	err := optimizer.Step(params, nil)
	assert.NotNil(t, err)
}

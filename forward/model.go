package forward

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is the sequence model consumed by the training loop. It takes a
// batch of padded articulatory sequences (each cpLen x CPDim) and predicts
// the corresponding spectrogram sequences (each cpLen/2 x MelDim). The
// architecture behind this interface is a fixed upstream contract; the
// loop only relies on the shapes and on the Backward/Params/Grads
// accounting.
type Model interface {
	Forward(cp []*mat.Dense) ([]*mat.Dense, error)
	Backward(grad []*mat.Dense) error
	ZeroGrad()
	Params() []*mat.Dense
	Grads() []*mat.Dense
	NumParams() int
	State() map[string][]float64
	SetState(state map[string][]float64) error
}

// LinearForwardModel is the provided baseline: each pair of adjacent
// articulatory frames is averaged (halving the sequence) and mapped through
// one affine layer to a spectrogram frame.
type LinearForwardModel struct {
	weight *mat.Dense // CPDim x MelDim
	bias   *mat.Dense // 1 x MelDim

	weightGrad *mat.Dense
	biasGrad   *mat.Dense

	// halved inputs of the last Forward, kept for Backward
	lastInputs []*mat.Dense
}

// NewLinearForwardModel initializes the baseline with small random weights
// drawn from the given source, so runs with the same seed are identical.
func NewLinearForwardModel(rng *rand.Rand) *LinearForwardModel {
	weight := mat.NewDense(CPDim, MelDim, nil)
	scale := 1.0 / math.Sqrt(CPDim)
	for i := 0; i < CPDim; i++ {
		for j := 0; j < MelDim; j++ {
			weight.Set(i, j, rng.NormFloat64()*scale)
		}
	}

	return &LinearForwardModel{
		weight:     weight,
		bias:       mat.NewDense(1, MelDim, nil),
		weightGrad: mat.NewDense(CPDim, MelDim, nil),
		biasGrad:   mat.NewDense(1, MelDim, nil),
	}
}

// halveSequence averages adjacent frame pairs, halving the frame count.
func halveSequence(cp *mat.Dense) (*mat.Dense, error) {
	cpLen, dim := cp.Dims()
	if cpLen%2 != 0 {
		return nil, errors.Errorf("articulatory length %d is not even", cpLen)
	}

	halved := mat.NewDense(cpLen/2, dim, nil)
	for t := 0; t < cpLen/2; t++ {
		for j := 0; j < dim; j++ {
			halved.Set(t, j, (cp.At(2*t, j)+cp.At(2*t+1, j))/2)
		}
	}
	return halved, nil
}

func (m *LinearForwardModel) Forward(cp []*mat.Dense) ([]*mat.Dense, error) {
	m.lastInputs = make([]*mat.Dense, len(cp))
	outputs := make([]*mat.Dense, len(cp))

	for i, seq := range cp {
		_, dim := seq.Dims()
		if dim != CPDim {
			return nil, errors.Errorf("example %d has %d input features, want %d", i, dim, CPDim)
		}

		halved, err := halveSequence(seq)
		if err != nil {
			return nil, errors.Wrapf(err, "example %d", i)
		}
		m.lastInputs[i] = halved

		out := &mat.Dense{}
		out.Mul(halved, m.weight)
		outLen, _ := out.Dims()
		for t := 0; t < outLen; t++ {
			row := out.RawRowView(t)
			for j := 0; j < MelDim; j++ {
				row[j] += m.bias.At(0, j)
			}
		}
		outputs[i] = out
	}
	return outputs, nil
}

// Backward accumulates parameter gradients from the loss gradient of the
// last Forward pass.
func (m *LinearForwardModel) Backward(grad []*mat.Dense) error {
	if len(grad) != len(m.lastInputs) {
		return errors.Errorf("gradient batch size %d does not match forward batch size %d",
			len(grad), len(m.lastInputs))
	}

	for i, g := range grad {
		var wGrad mat.Dense
		wGrad.Mul(m.lastInputs[i].T(), g)
		m.weightGrad.Add(m.weightGrad, &wGrad)

		gLen, _ := g.Dims()
		for t := 0; t < gLen; t++ {
			row := g.RawRowView(t)
			biasRow := m.biasGrad.RawRowView(0)
			for j := 0; j < MelDim; j++ {
				biasRow[j] += row[j]
			}
		}
	}
	return nil
}

func (m *LinearForwardModel) ZeroGrad() {
	m.weightGrad.Zero()
	m.biasGrad.Zero()
}

func (m *LinearForwardModel) Params() []*mat.Dense {
	return []*mat.Dense{m.weight, m.bias}
}

func (m *LinearForwardModel) Grads() []*mat.Dense {
	return []*mat.Dense{m.weightGrad, m.biasGrad}
}

func (m *LinearForwardModel) NumParams() int {
	return CPDim*MelDim + MelDim
}

func (m *LinearForwardModel) State() map[string][]float64 {
	return map[string][]float64{
		"weight": append([]float64(nil), m.weight.RawMatrix().Data...),
		"bias":   append([]float64(nil), m.bias.RawMatrix().Data...),
	}
}

func (m *LinearForwardModel) SetState(state map[string][]float64) error {
	weight, ok := state["weight"]
	if !ok || len(weight) != CPDim*MelDim {
		return errors.New("state has no valid weight tensor")
	}
	bias, ok := state["bias"]
	if !ok || len(bias) != MelDim {
		return errors.New("state has no valid bias tensor")
	}

	m.weight = mat.NewDense(CPDim, MelDim, append([]float64(nil), weight...))
	m.bias = mat.NewDense(1, MelDim, append([]float64(nil), bias...))
	return nil
}

// Adam implements the Adam update rule over a model's parameters.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    []*mat.Dense
	v    []*mat.Dense
}

// NewAdam returns an Adam optimizer with the usual default moments.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
	}
}

// Step applies one update to params from grads.
func (a *Adam) Step(params, grads []*mat.Dense) error {
	if len(params) != len(grads) {
		return errors.Errorf("have %d parameter tensors but %d gradient tensors", len(params), len(grads))
	}

	if a.m == nil {
		a.m = make([]*mat.Dense, len(params))
		a.v = make([]*mat.Dense, len(params))
		for i, p := range params {
			rows, cols := p.Dims()
			a.m[i] = mat.NewDense(rows, cols, nil)
			a.v[i] = mat.NewDense(rows, cols, nil)
		}
	}

	a.step++
	corr1 := 1 - math.Pow(a.Beta1, float64(a.step))
	corr2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range params {
		pData := p.RawMatrix().Data
		gData := grads[i].RawMatrix().Data
		mData := a.m[i].RawMatrix().Data
		vData := a.v[i].RawMatrix().Data

		for k := range pData {
			mData[k] = a.Beta1*mData[k] + (1-a.Beta1)*gData[k]
			vData[k] = a.Beta2*vData[k] + (1-a.Beta2)*gData[k]*gData[k]

			mHat := mData[k] / corr1
			vHat := vData[k] / corr2
			pData[k] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
	return nil
}

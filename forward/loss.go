package forward

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Criterion scores a predicted batch against its target and produces the
// gradient with respect to the prediction.
type Criterion interface {
	Loss(predicted, target []*mat.Dense) (float64, error)
	Grad(predicted, target []*mat.Dense) ([]*mat.Dense, error)
}

// RMSELoss is sqrt(MSE + eps) over all frames and features of a batch.
// The eps keeps the gradient finite at zero error.
type RMSELoss struct {
	Eps float64
}

// NewRMSELoss returns an RMSELoss with the default eps.
func NewRMSELoss() *RMSELoss {
	return &RMSELoss{Eps: 1e-6}
}

func (r *RMSELoss) mse(predicted, target []*mat.Dense) (float64, int, error) {
	if len(predicted) != len(target) {
		return 0, 0, errors.Errorf("batch size mismatch: %d predictions, %d targets", len(predicted), len(target))
	}

	sum := 0.0
	n := 0
	for i := range predicted {
		pr, pc := predicted[i].Dims()
		tr, tc := target[i].Dims()
		if pr != tr || pc != tc {
			return 0, 0, errors.Errorf("shape mismatch at example %d: %dx%d vs %dx%d", i, pr, pc, tr, tc)
		}
		for row := 0; row < pr; row++ {
			for col := 0; col < pc; col++ {
				diff := predicted[i].At(row, col) - target[i].At(row, col)
				sum += diff * diff
				n++
			}
		}
	}
	return sum / float64(n), n, nil
}

// Loss computes the batch RMSE.
func (r *RMSELoss) Loss(predicted, target []*mat.Dense) (float64, error) {
	mse, _, err := r.mse(predicted, target)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse + r.Eps), nil
}

// Grad computes dLoss/dPredicted: (pred - target) / (n * sqrt(mse + eps)).
func (r *RMSELoss) Grad(predicted, target []*mat.Dense) ([]*mat.Dense, error) {
	mse, n, err := r.mse(predicted, target)
	if err != nil {
		return nil, err
	}
	scale := 1.0 / (float64(n) * math.Sqrt(mse+r.Eps))

	grads := make([]*mat.Dense, len(predicted))
	for i := range predicted {
		grad := &mat.Dense{}
		grad.Sub(predicted[i], target[i])
		grad.Scale(scale, grad)
		grads[i] = grad
	}
	return grads, nil
}

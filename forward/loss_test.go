package forward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRMSELoss(t *testing.T) {
	criterion := NewRMSELoss()

	predicted := []*mat.Dense{mat.NewDense(2, 2, []float64{1, 2, 3, 4})}
	target := []*mat.Dense{mat.NewDense(2, 2, []float64{1, 2, 3, 6})}

	// MSE = 4/4 = 1
	loss, err := criterion.Loss(predicted, target)
	assert.Nil(t, err)
	assert.InDelta(t, math.Sqrt(1+criterion.Eps), loss, 1e-12)
}

func TestRMSELossZeroErrorStaysFinite(t *testing.T) {
	criterion := NewRMSELoss()

	seq := []*mat.Dense{mat.NewDense(1, 3, []float64{1, 2, 3})}
	loss, err := criterion.Loss(seq, seq)
	assert.Nil(t, err)
	assert.InDelta(t, math.Sqrt(criterion.Eps), loss, 1e-12)

	grads, err := criterion.Grad(seq, seq)
	assert.Nil(t, err)
	assert.InDelta(t, 0.0, grads[0].At(0, 0), 1e-12)
}

func TestRMSELossGradDirection(t *testing.T) {
	criterion := NewRMSELoss()

	predicted := []*mat.Dense{mat.NewDense(1, 2, []float64{2, 0})}
	target := []*mat.Dense{mat.NewDense(1, 2, []float64{0, 2})}

	grads, err := criterion.Grad(predicted, target)
	assert.Nil(t, err)
	assert.True(t, grads[0].At(0, 0) > 0, "overshoot pushes the weight down")
	assert.True(t, grads[0].At(0, 1) < 0, "undershoot pushes the weight up")
}

func TestRMSELossGradMatchesFiniteDifference(t *testing.T) {
	criterion := NewRMSELoss()

	predicted := []*mat.Dense{mat.NewDense(1, 2, []float64{0.5, -0.25})}
	target := []*mat.Dense{mat.NewDense(1, 2, []float64{0.1, 0.3})}

	grads, err := criterion.Grad(predicted, target)
	assert.Nil(t, err)

	const h = 1e-7
	for j := 0; j < 2; j++ {
		bumped := mat.DenseCopyOf(predicted[0])
		bumped.Set(0, j, bumped.At(0, j)+h)

		lossPlus, err := criterion.Loss([]*mat.Dense{bumped}, target)
		assert.Nil(t, err)
		loss, err := criterion.Loss(predicted, target)
		assert.Nil(t, err)

		assert.InDelta(t, (lossPlus-loss)/h, grads[0].At(0, j), 1e-4)
	}
}

func TestRMSELossShapeMismatch(t *testing.T) {
	criterion := NewRMSELoss()

	predicted := []*mat.Dense{mat.NewDense(2, 2, nil)}
	target := []*mat.Dense{mat.NewDense(1, 2, nil)}

	_, err := criterion.Loss(predicted, target)
	assert.NotNil(t, err)

	_, err = criterion.Loss(predicted, nil)
	assert.NotNil(t, err)
}

package calibration

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitIsotonicIsMonotone(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	targets := []float64{0, 0, 1, 0, 1, 1, 0, 1}

	iso, err := FitIsotonic(scores, targets)
	require.NoError(t, err)

	prev := -1.0
	for s := 0.0; s <= 1.0; s += 0.01 {
		v := iso.Transform(s)
		assert.GreaterOrEqual(t, v, prev, "curve must be non-decreasing")
		prev = v
	}
}

func TestTransformClipsOutsideFittedRange(t *testing.T) {
	iso, err := FitIsotonic([]float64{0.3, 0.7}, []float64{0, 1})
	require.NoError(t, err)

	assert.Equal(t, iso.Transform(0.3), iso.Transform(0.0))
	assert.Equal(t, iso.Transform(0.7), iso.Transform(1.0))
}

func TestTransformInterpolatesBetweenKnots(t *testing.T) {
	iso, err := FitIsotonic([]float64{0.0, 1.0}, []float64{0, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, iso.Transform(0.5), 1e-9)
}

func TestFitIsotonicRejectsEmptyInput(t *testing.T) {
	_, err := FitIsotonic(nil, nil)
	assert.Error(t, err)
}

func TestFitBinaryImprovesBrierOnBiasedModel(t *testing.T) {
	// Model systematically overconfident: true rate is raw prob squashed
	// towards 0.5.
	rng := rand.New(rand.NewSource(1))
	n := 2000
	probs := make([]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		p := rng.Float64()
		probs[i] = p
		trueRate := 0.5 + (p-0.5)*0.4
		if rng.Float64() < trueRate {
			labels[i] = 1
		}
	}

	b, err := FitBinary(probs, labels)
	require.NoError(t, err)

	assert.Less(t, b.BrierAfter, b.BrierBefore, "calibration should reduce Brier score on a miscalibrated model")
	assert.GreaterOrEqual(t, b.Transform(0.99), 0.0)
	assert.LessOrEqual(t, b.Transform(0.99), 1.0)
}

func TestMulticlassTransformSumsToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	n := 600
	probs := make([][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64(), rng.Float64(), rng.Float64()
		total := a + b + c
		probs[i] = []float64{a / total, b / total, c / total}
		labels[i] = i % 3
	}

	m, err := FitMulticlass(probs, labels, 3)
	require.NoError(t, err)

	out := m.Transform([]float64{0.5, 0.3, 0.2})
	var sum float64
	for _, p := range out {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLogLossPerfectPrediction(t *testing.T) {
	probs := [][]float64{{0, 1}, {1, 0}}
	labels := []int{1, 0}
	assert.InDelta(t, 0.0, LogLoss(probs, labels), 1e-6)
}

func TestBrierScoreWorstCase(t *testing.T) {
	probs := [][]float64{{1, 0}}
	labels := []int{1}
	assert.InDelta(t, 2.0, BrierScore(probs, labels), 1e-9)
}

func TestAccuracy(t *testing.T) {
	probs := [][]float64{{0.7, 0.3}, {0.2, 0.8}, {0.6, 0.4}}
	labels := []int{0, 1, 1}
	assert.InDelta(t, 2.0/3.0, Accuracy(probs, labels), 1e-9)
}

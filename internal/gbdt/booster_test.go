package gbdt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticBinary(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		a := rng.Float64()*4 - 2
		b := rng.Float64()*4 - 2
		noise := rng.NormFloat64() * 0.3
		x[i] = []float64{a, b, rng.Float64()}
		if a+0.5*b+noise > 0 {
			labels[i] = 1
		}
	}
	return &Dataset{X: x, Labels: labels}
}

func TestTrainBinarySeparatesClasses(t *testing.T) {
	train := syntheticBinary(600, 1)
	valid := syntheticBinary(200, 2)

	b, err := Train(Config{NumRounds: 80, MaxDepth: 3}, 2, train, valid, nil)
	require.NoError(t, err)

	correct := 0
	for i, row := range valid.X {
		probs := b.PredictProba(row)
		assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
		pred := 0
		if probs[1] > probs[0] {
			pred = 1
		}
		if pred == valid.Labels[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(valid.X))
	assert.Greater(t, accuracy, 0.85, "expected the booster to learn a linear boundary")
}

func TestTrainMulticlassProbabilitiesSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 450
	x := make([][]float64, n)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		c := i % 3
		x[i] = []float64{float64(c) + rng.NormFloat64()*0.4, rng.Float64()}
		labels[i] = c
	}

	b, err := Train(Config{NumRounds: 60, MaxDepth: 3}, 3, &Dataset{X: x, Labels: labels}, nil, nil)
	require.NoError(t, err)

	probs := b.PredictProba([]float64{2.0, 0.5})
	require.Len(t, probs, 3)
	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[2], probs[0], "a clearly class-2 point should score class 2 highest")
}

func TestMissingValuesAreRouted(t *testing.T) {
	// Feature 0 present implies class by sign; missing feature 0 always class 1.
	var x [][]float64
	var labels []int
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 300; i++ {
		switch i % 3 {
		case 0:
			x = append(x, []float64{1 + rng.Float64(), rng.Float64()})
			labels = append(labels, 1)
		case 1:
			x = append(x, []float64{-1 - rng.Float64(), rng.Float64()})
			labels = append(labels, 0)
		default:
			x = append(x, []float64{math.NaN(), rng.Float64()})
			labels = append(labels, 1)
		}
	}

	b, err := Train(Config{NumRounds: 40, MaxDepth: 3}, 2, &Dataset{X: x, Labels: labels}, nil, nil)
	require.NoError(t, err)

	probs := b.PredictProba([]float64{math.NaN(), 0.5})
	assert.Greater(t, probs[1], 0.5, "missing rows were always class 1 in training")
}

func TestSampleWeightsShiftPredictions(t *testing.T) {
	// Identical feature, conflicting labels. Heavier weight on class 1 rows
	// must pull the prediction above 0.5.
	x := [][]float64{{1}, {1}, {1}, {1}}
	labels := []int{0, 0, 1, 1}
	weights := []float64{1, 1, 5, 5}

	b, err := Train(Config{NumRounds: 30, MaxDepth: 2}, 2, &Dataset{X: x, Labels: labels, Weights: weights}, nil, nil)
	require.NoError(t, err)

	probs := b.PredictProba([]float64{1})
	assert.Greater(t, probs[1], 0.5)
}

func TestEarlyStoppingTrimsRounds(t *testing.T) {
	train := syntheticBinary(300, 5)
	valid := syntheticBinary(120, 6)

	b, err := Train(Config{NumRounds: 400, MaxDepth: 6, EarlyStoppingRounds: 10}, 2, train, valid, nil)
	require.NoError(t, err)

	assert.Less(t, b.BestRound, 400)
	assert.Len(t, b.Trees, b.BestRound)
}

func TestFeatureImportanceFavoursInformativeFeature(t *testing.T) {
	train := syntheticBinary(600, 7)
	b, err := Train(Config{NumRounds: 50, MaxDepth: 3}, 2, train, nil, nil)
	require.NoError(t, err)

	importance := b.FeatureImportance()
	require.Len(t, importance, 3)
	var sum float64
	for _, v := range importance {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Feature 0 drives the label; feature 2 is pure noise.
	assert.Greater(t, importance[0], importance[2])
}

func TestMarshalRoundTrip(t *testing.T) {
	train := syntheticBinary(200, 8)
	b, err := Train(Config{NumRounds: 20, MaxDepth: 3}, 2, train, nil, nil)
	require.NoError(t, err)

	data, err := b.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	row := []float64{0.3, -0.7, 0.1}
	assert.InDelta(t, b.PredictProba(row)[1], restored.PredictProba(row)[1], 1e-12)
}

func TestTrainRejectsBadLabels(t *testing.T) {
	_, err := Train(Config{}, 2, &Dataset{X: [][]float64{{1}}, Labels: []int{5}}, nil, nil)
	assert.Error(t, err)
}

func TestContributionsSumNearRawScore(t *testing.T) {
	train := syntheticBinary(300, 9)
	b, err := Train(Config{NumRounds: 25, MaxDepth: 3}, 2, train, nil, nil)
	require.NoError(t, err)

	row := []float64{1.2, 0.4, 0.9}
	contribs, bias := b.Contributions(row, 1)
	var total float64
	for _, c := range contribs {
		total += c
	}
	raw := math.Log(b.PredictProba(row)[1] / b.PredictProba(row)[0])
	assert.InDelta(t, raw, total+bias, 1e-9)
}

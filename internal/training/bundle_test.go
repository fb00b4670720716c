package training

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/gbdt"
	"github.com/yourusername/edge-finder/internal/models"
)

// stumpBundle is a binary bundle whose single tree splits on the first
// feature of the recorded ordering.
func stumpBundle(names []string) *Bundle {
	tree := &gbdt.Node{
		Feature:     0,
		Threshold:   1500,
		MissingLeft: true,
		Left:        &gbdt.Node{Leaf: true, Value: -2},
		Right:       &gbdt.Node{Leaf: true, Value: 2},
	}
	return &Bundle{
		Target:       models.TargetOU25,
		Version:      1,
		Classes:      append([]string(nil), ClassesOU25...),
		FeatureNames: names,
		Booster: &gbdt.Booster{
			Config:      gbdt.Config{LearningRate: 1}.Normalize(),
			NumClass:    2,
			NumFeatures: len(names),
			BaseScore:   []float64{0},
			Trees:       [][]*gbdt.Node{{tree}},
			BestRound:   1,
		},
	}
}

func TestPredictProbaUsesRecordedFeatureOrder(t *testing.T) {
	// A bundle persisted when elo_away led the schema must keep feeding
	// elo_away to feature slot 0, whatever the current column order says.
	names := append([]string(nil), features.Columns...)
	names[0], names[1] = names[1], names[0]

	bundle := stumpBundle(names)
	vector := &models.FeatureVector{EloHome: 1600, EloAway: 1400}

	probs, err := bundle.PredictProba(vector)
	require.NoError(t, err)

	// The stump reads elo_away = 1400: left branch, raw score -2. Feeding
	// the ambient first column (elo_home = 1600) would flip the branch.
	assert.InDelta(t, 1/(1+math.Exp(2)), probs[models.OutcomeUnder], 1e-9)
	assert.InDelta(t, 1/(1+math.Exp(-2)), probs[models.OutcomeOver], 1e-9)
}

func TestPredictProbaMatchingOrderUnchanged(t *testing.T) {
	bundle := stumpBundle(append([]string(nil), features.Columns...))
	vector := &models.FeatureVector{EloHome: 1600, EloAway: 1400}

	probs, err := bundle.PredictProba(vector)
	require.NoError(t, err)

	// Slot 0 is elo_home = 1600: right branch.
	assert.InDelta(t, 1/(1+math.Exp(-2)), probs[models.OutcomeUnder], 1e-9)
}

func TestPredictProbaRejectsUnknownFeature(t *testing.T) {
	names := append([]string(nil), features.Columns...)
	names[3] = "xg_home"

	_, err := stumpBundle(names).PredictProba(&models.FeatureVector{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xg_home")
}

package training

import (
	"fmt"

	"github.com/yourusername/edge-finder/internal/calibration"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/gbdt"
	"github.com/yourusername/edge-finder/internal/models"
)

// Bundle is one versioned, self-contained trained model: booster, fitted
// calibration and the class/feature contracts it was trained under. Bundles
// are immutable once persisted.
type Bundle struct {
	Target       string                  `json:"target"`
	Version      int                     `json:"version"`
	Classes      []string                `json:"classes"`
	FeatureNames []string                `json:"feature_names"`
	Booster      *gbdt.Booster           `json:"booster"`
	Multiclass   *calibration.Multiclass `json:"multiclass_calibration,omitempty"`
	Binary       *calibration.Binary     `json:"binary_calibration,omitempty"`
}

// Name returns the canonical bundle name, e.g. "1x2_v3".
func (b *Bundle) Name() string {
	return fmt.Sprintf("%s_v%d", b.Target, b.Version)
}

// PredictProba returns calibrated class probabilities for one feature vector,
// keyed by class name.
func (b *Bundle) PredictProba(vector *models.FeatureVector) (map[string]float64, error) {
	row, err := b.row(vector)
	if err != nil {
		return nil, err
	}
	return b.predictRow(row)
}

// row flattens the vector in the bundle's recorded feature order, not the
// current ambient column order: a bundle persisted under an older ordering
// must keep reading the columns it was trained on.
func (b *Bundle) row(vector *models.FeatureVector) ([]float64, error) {
	values := features.ValuesByName(vector)
	row := make([]float64, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		value, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("model %s expects unknown feature %q", b.Name(), name)
		}
		row[i] = value
	}
	return row, nil
}

func (b *Bundle) predictRow(row []float64) (map[string]float64, error) {
	if len(row) != b.Booster.NumFeatures {
		return nil, fmt.Errorf("feature row has %d values, model expects %d", len(row), b.Booster.NumFeatures)
	}

	raw := b.Booster.PredictProba(row)
	calibrated := raw
	switch {
	case b.Multiclass != nil:
		calibrated = b.Multiclass.Transform(raw)
	case b.Binary != nil:
		p1 := b.Binary.Transform(raw[1])
		calibrated = []float64{1 - p1, p1}
	}

	out := make(map[string]float64, len(b.Classes))
	for i, class := range b.Classes {
		out[class] = calibrated[i]
	}
	return out, nil
}

// Explanation attributes one prediction to its features.
type Explanation struct {
	Class         string             `json:"class"`
	Contributions map[string]float64 `json:"contributions"`
	FromFallback  bool               `json:"from_fallback"`
}

// Explain attributes the named class's score to individual features via tree
// path contributions. When attribution is unavailable for the class it falls
// back to global feature importance.
func (b *Bundle) Explain(vector *models.FeatureVector, class string) (*Explanation, error) {
	classIdx := -1
	for i, c := range b.Classes {
		if c == class {
			classIdx = i
			break
		}
	}
	if classIdx < 0 {
		return nil, fmt.Errorf("class %q is not predicted by %s", class, b.Name())
	}

	out := &Explanation{Class: class, Contributions: make(map[string]float64, len(b.FeatureNames))}
	if row, err := b.row(vector); err == nil {
		contribs, _ := b.Booster.Contributions(row, classIdx)
		for i, name := range b.FeatureNames {
			out.Contributions[name] = contribs[i]
		}
		return out, nil
	}

	// Unknown feature name: degrade to global importance rather than fail.
	out.FromFallback = true
	importance := b.Booster.FeatureImportance()
	for i, name := range b.FeatureNames {
		if i < len(importance) {
			out.Contributions[name] = importance[i]
		}
	}
	return out, nil
}

// ImportanceByFeature returns global gain importance keyed by feature name.
func (b *Bundle) ImportanceByFeature() map[string]float64 {
	importance := b.Booster.FeatureImportance()
	out := make(map[string]float64, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		out[name] = importance[i]
	}
	return out
}

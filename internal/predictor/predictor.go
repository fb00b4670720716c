// Package predictor serves calibrated predictions from the latest persisted
// model bundles, with an in-memory bundle cache so repeated predictions do
// not re-read model files.
package predictor

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/metrics"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/training"
)

// DefaultEdgeThresholdShow is the minimum model edge for a recommendation to
// be surfaced to callers. Deliberately below the backtest betting threshold:
// near-miss edges are worth showing even if the simulator would not stake.
const DefaultEdgeThresholdShow = 0.03

const bundleCacheExpiry = 30 * time.Minute

// Predictor answers prediction, explanation and recommendation queries.
type Predictor struct {
	bundles  *training.DiskStore
	features *features.Store
	logger   *logrus.Logger
	cache    *gocache.Cache

	edgeThresholdShow float64
}

// Option configures the predictor.
type Option func(*Predictor)

// WithEdgeThresholdShow overrides the recommendation display threshold.
func WithEdgeThresholdShow(v float64) Option {
	return func(p *Predictor) { p.edgeThresholdShow = v }
}

// New creates a predictor over the given bundle store and feature store.
func New(bundles *training.DiskStore, featureStore *features.Store, logger *logrus.Logger, opts ...Option) *Predictor {
	p := &Predictor{
		bundles:           bundles,
		features:          featureStore,
		logger:            logger,
		cache:             gocache.New(bundleCacheExpiry, 10*time.Minute),
		edgeThresholdShow: DefaultEdgeThresholdShow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prediction is one scored fixture.
type Prediction struct {
	FixtureID     int64              `json:"fixture_id"`
	Target        string             `json:"target"`
	ModelVersion  int                `json:"model_version"`
	Probabilities map[string]float64 `json:"probabilities"`
}

func (p *Predictor) bundle(target string) (*training.Bundle, error) {
	if cached, ok := p.cache.Get(target); ok {
		return cached.(*training.Bundle), nil
	}

	bundle, err := p.bundles.LoadLatest(target)
	if err != nil {
		return nil, err
	}
	p.cache.Set(target, bundle, gocache.DefaultExpiration)
	p.logger.WithFields(logrus.Fields{
		"target":  target,
		"version": bundle.Version,
	}).Info("Loaded model bundle into cache")
	return bundle, nil
}

// Invalidate drops every cached bundle. Called after retraining so the next
// prediction picks up the new version; the cache is cleared wholesale rather
// than per target to keep versions mutually consistent.
func (p *Predictor) Invalidate() {
	p.cache.Flush()
}

// Predict scores one fixture against the latest bundle for the target. The
// fixture does not need to be completed; features are built as of its date.
func (p *Predictor) Predict(ctx context.Context, target string, fixture *models.Fixture) (*Prediction, error) {
	bundle, err := p.bundle(target)
	if err != nil {
		return nil, err
	}

	vector, err := p.features.Build(ctx, fixture)
	if err != nil {
		return nil, err
	}

	probs, err := bundle.PredictProba(vector)
	if err != nil {
		return nil, err
	}
	metrics.RecordPrediction(target)
	return &Prediction{
		FixtureID:     fixture.ID,
		Target:        target,
		ModelVersion:  bundle.Version,
		Probabilities: probs,
	}, nil
}

// Explain attributes a class's prediction to individual features, falling
// back to global feature importance when per-row attribution is unavailable.
func (p *Predictor) Explain(ctx context.Context, target string, fixture *models.Fixture, class string) (*training.Explanation, error) {
	bundle, err := p.bundle(target)
	if err != nil {
		return nil, err
	}
	vector, err := p.features.Build(ctx, fixture)
	if err != nil {
		return nil, err
	}
	return bundle.Explain(vector, class)
}

// Recommendation is one outcome whose model probability exceeds the market's
// implied probability by at least the display threshold.
type Recommendation struct {
	FixtureID   int64   `json:"fixture_id"`
	Outcome     string  `json:"outcome"`
	ModelProb   float64 `json:"model_prob"`
	ImpliedProb float64 `json:"implied_prob"`
	Edge        float64 `json:"edge"`
	Odds        float64 `json:"odds"`
}

// Recommend scores the 1X2 market for one fixture against a quote and
// returns every outcome with a displayable edge, best edge first.
func (p *Predictor) Recommend(ctx context.Context, fixture *models.Fixture, quote *models.OddsQuote) ([]*Recommendation, error) {
	if quote == nil || !quote.IsComplete() {
		return nil, fmt.Errorf("%w: fixture %d", models.ErrMissingOdds, fixture.ID)
	}

	prediction, err := p.Predict(ctx, models.Target1X2, fixture)
	if err != nil {
		return nil, err
	}

	oh, od, oa := quote.Floats()
	ph, pd, pa := quote.ImpliedProbabilities()
	outcomes := []struct {
		name    string
		implied float64
		odds    float64
	}{
		{models.OutcomeHome, ph, oh},
		{models.OutcomeDraw, pd, od},
		{models.OutcomeAway, pa, oa},
	}

	var recs []*Recommendation
	for _, o := range outcomes {
		modelProb := prediction.Probabilities[o.name]
		edge := modelProb - o.implied
		if edge < p.edgeThresholdShow {
			continue
		}
		recs = append(recs, &Recommendation{
			FixtureID:   fixture.ID,
			Outcome:     o.name,
			ModelProb:   modelProb,
			ImpliedProb: o.implied,
			Edge:        edge,
			Odds:        o.odds,
		})
	}
	// Best edge first.
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].Edge > recs[j-1].Edge; j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
	return recs, nil
}

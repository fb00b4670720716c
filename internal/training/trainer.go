package training

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/calibration"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/gbdt"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/repository"
)

// DefaultMinTrainSamples is the floor below which training refuses to run;
// a gradient-boosted model on fewer rows memorises noise.
const DefaultMinTrainSamples = 500

// TrainerConfig bundles the training hyperparameters.
type TrainerConfig struct {
	MinTrainSamples    int
	TestFraction       float64
	ValidationFraction float64
	Booster            gbdt.Config
}

func (c TrainerConfig) normalize() TrainerConfig {
	if c.MinTrainSamples <= 0 {
		c.MinTrainSamples = DefaultMinTrainSamples
	}
	if c.TestFraction <= 0 {
		c.TestFraction = DefaultTestFraction
	}
	if c.ValidationFraction <= 0 {
		c.ValidationFraction = DefaultValidationFraction
	}
	return c
}

// Trainer fits calibrated bundles from historical fixtures.
type Trainer struct {
	features *features.Store
	fixtures repository.FixtureRepository
	models   repository.ModelRepository
	bundles  *DiskStore
	logger   *logrus.Logger
	cfg      TrainerConfig
}

// NewTrainer creates a trainer. The model repository may be nil; metadata
// rows are then not mirrored to the database.
func NewTrainer(
	featureStore *features.Store,
	fixtures repository.FixtureRepository,
	modelRepo repository.ModelRepository,
	bundles *DiskStore,
	logger *logrus.Logger,
	cfg TrainerConfig,
) *Trainer {
	return &Trainer{
		features: featureStore,
		fixtures: fixtures,
		models:   modelRepo,
		bundles:  bundles,
		logger:   logger,
		cfg:      cfg.normalize(),
	}
}

// Request describes one training run.
type Request struct {
	Target      string  `json:"target"`
	LeagueIDs   []int64 `json:"league_ids"`
	MaxFixtures int     `json:"max_fixtures"`
}

// Result is a persisted training run.
type Result struct {
	Bundle *Bundle           `json:"-"`
	Meta   *models.ModelMeta `json:"meta"`
	Path   string            `json:"path"`
}

// Train fits a new model version on the most recent completed fixtures and
// persists it to disk and the model registry.
func (t *Trainer) Train(ctx context.Context, req Request) (*Result, error) {
	if _, err := ClassesFor(req.Target); err != nil {
		return nil, err
	}

	maxFixtures := req.MaxFixtures
	if maxFixtures <= 0 {
		maxFixtures = 20000
	}
	fixtures, err := t.fixtures.RecentCompleted(ctx, req.LeagueIDs, maxFixtures)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	bundle, meta, err := t.Fit(ctx, req.Target, fixtures)
	if err != nil {
		return nil, err
	}

	version, err := t.bundles.NextVersion(req.Target)
	if err != nil {
		return nil, err
	}
	bundle.Version = version
	meta.Version = version
	meta.LeaguesIncluded = req.LeagueIDs

	path, err := t.bundles.Save(bundle, meta)
	if err != nil {
		return nil, err
	}

	if t.models != nil {
		metrics, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal model metrics: %w", err)
		}
		record := &models.Model{
			Target:    req.Target,
			Version:   version,
			Path:      path,
			Metrics:   metrics,
			TrainedAt: meta.CreatedAt,
		}
		if err := t.models.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to register model: %w", err)
		}
	}

	t.logger.WithFields(logrus.Fields{
		"target":   req.Target,
		"version":  version,
		"samples":  meta.TrainSamples + meta.ValSamples + meta.TestSamples,
		"log_loss": meta.LogLossTest,
		"accuracy": meta.Accuracy,
	}).Info("Model trained and persisted")

	return &Result{Bundle: bundle, Meta: meta, Path: path}, nil
}

// Fit trains and calibrates a bundle on the given completed fixtures without
// persisting anything. Fixtures must be in ascending date order; the walk
// forward backtest calls this directly per period.
func (t *Trainer) Fit(ctx context.Context, target string, fixtures []*models.Fixture) (*Bundle, *models.ModelMeta, error) {
	classes, err := ClassesFor(target)
	if err != nil {
		return nil, nil, err
	}

	if len(fixtures) < t.cfg.MinTrainSamples {
		return nil, nil, fmt.Errorf("%w: %d fixtures, need %d", models.ErrInsufficientData, len(fixtures), t.cfg.MinTrainSamples)
	}

	vectors, err := t.features.VectorsFor(ctx, fixtures)
	if err != nil {
		return nil, nil, err
	}

	var x [][]float64
	var labels []int
	var usable []*models.Fixture
	for _, f := range fixtures {
		v, ok := vectors[f.ID]
		if !ok {
			continue
		}
		y, err := Label(f, target)
		if err != nil {
			return nil, nil, err
		}
		x = append(x, features.Ordered(v))
		labels = append(labels, y)
		usable = append(usable, f)
	}
	if len(x) < t.cfg.MinTrainSamples {
		return nil, nil, fmt.Errorf("%w: %d usable samples after feature build, need %d", models.ErrInsufficientData, len(x), t.cfg.MinTrainSamples)
	}

	split := ChronologicalSplit(len(x), t.cfg.TestFraction, t.cfg.ValidationFraction)
	numClass := len(classes)

	classWeights := ClassWeights(labels[:split.TrainEnd], numClass)
	trainWeights := make([]float64, split.TrainEnd)
	for i := 0; i < split.TrainEnd; i++ {
		trainWeights[i] = classWeights[labels[i]]
	}

	trainSet := &gbdt.Dataset{X: x[:split.TrainEnd], Labels: labels[:split.TrainEnd], Weights: trainWeights}
	var validSet *gbdt.Dataset
	if split.ValSize() > 0 {
		validSet = &gbdt.Dataset{X: x[split.TrainEnd:split.ValEnd], Labels: labels[split.TrainEnd:split.ValEnd]}
	}

	booster, err := gbdt.Train(t.cfg.Booster, numClass, trainSet, validSet, t.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to train booster: %w", err)
	}
	booster.FeatureNames = features.Columns

	bundle := &Bundle{
		Target:       target,
		Classes:      classes,
		FeatureNames: features.Columns,
		Booster:      booster,
	}

	if validSet != nil {
		if err := t.calibrate(bundle, validSet, numClass); err != nil {
			return nil, nil, err
		}
	} else {
		t.logger.WithField("target", target).Warn("No validation samples, skipping calibration")
	}

	meta := t.evaluate(bundle, x, labels, split)
	meta.Target = target
	meta.CreatedAt = time.Now().UTC()
	meta.FeatureCount = len(features.Columns)
	meta.TrainingWindowStart = usable[0].Date.Format(time.RFC3339)
	meta.TrainingWindowEnd = usable[len(usable)-1].Date.Format(time.RFC3339)

	return bundle, meta, nil
}

func (t *Trainer) calibrate(bundle *Bundle, validSet *gbdt.Dataset, numClass int) error {
	rawProbs := make([][]float64, len(validSet.X))
	for i, row := range validSet.X {
		rawProbs[i] = bundle.Booster.PredictProba(row)
	}

	if numClass == 2 {
		positive := make([]float64, len(rawProbs))
		for i, p := range rawProbs {
			positive[i] = p[1]
		}
		binary, err := calibration.FitBinary(positive, validSet.Labels)
		if err != nil {
			return fmt.Errorf("failed to fit binary calibration: %w", err)
		}
		bundle.Binary = binary
		return nil
	}

	multi, err := calibration.FitMulticlass(rawProbs, validSet.Labels, numClass)
	if err != nil {
		return fmt.Errorf("failed to fit multiclass calibration: %w", err)
	}
	bundle.Multiclass = multi
	return nil
}

// evaluate scores the fitted bundle on the train and test partitions.
func (t *Trainer) evaluate(bundle *Bundle, x [][]float64, labels []int, split Split) *models.ModelMeta {
	predict := func(lo, hi int, calibrated bool) [][]float64 {
		out := make([][]float64, 0, hi-lo)
		for i := lo; i < hi; i++ {
			raw := bundle.Booster.PredictProba(x[i])
			if !calibrated {
				out = append(out, raw)
				continue
			}
			switch {
			case bundle.Multiclass != nil:
				out = append(out, bundle.Multiclass.Transform(raw))
			case bundle.Binary != nil:
				p1 := bundle.Binary.Transform(raw[1])
				out = append(out, []float64{1 - p1, p1})
			default:
				out = append(out, raw)
			}
		}
		return out
	}

	trainProbs := predict(0, split.TrainEnd, true)
	testRaw := predict(split.ValEnd, split.N, false)
	testCal := predict(split.ValEnd, split.N, true)
	testLabels := labels[split.ValEnd:]

	return &models.ModelMeta{
		LogLossTrain:     calibration.LogLoss(trainProbs, labels[:split.TrainEnd]),
		LogLossTest:      calibration.LogLoss(testCal, testLabels),
		BrierScoreBefore: calibration.BrierScore(testRaw, testLabels),
		BrierScore:       calibration.BrierScore(testCal, testLabels),
		Accuracy:         calibration.Accuracy(testCal, testLabels),
		TrainSamples:     split.TrainSize(),
		ValSamples:       split.ValSize(),
		TestSamples:      split.TestSize(),
	}
}

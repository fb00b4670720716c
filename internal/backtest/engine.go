package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/calibration"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/repository"
	"github.com/yourusername/edge-finder/internal/training"
)

// Config holds the simulation parameters.
type Config struct {
	InitialBankroll      float64
	StepMonths           int
	InitialCutoffSteps   int
	MinTrainSamples      int
	EdgeThreshold        float64
	KellyFraction        float64
	KellyMaxStake        float64
	OverfitROIThreshold  float64
	OverfitNaiveMultiple float64
}

func (c Config) normalize() Config {
	if c.InitialBankroll <= 0 {
		c.InitialBankroll = 1000
	}
	if c.StepMonths <= 0 {
		c.StepMonths = DefaultStepMonths
	}
	if c.InitialCutoffSteps <= 0 {
		c.InitialCutoffSteps = DefaultInitialCutoffSteps
	}
	if c.MinTrainSamples <= 0 {
		c.MinTrainSamples = training.DefaultMinTrainSamples
	}
	if c.EdgeThreshold <= 0 {
		c.EdgeThreshold = DefaultEdgeThreshold
	}
	if c.KellyFraction <= 0 {
		c.KellyFraction = DefaultKellyFraction
	}
	if c.KellyMaxStake <= 0 {
		c.KellyMaxStake = DefaultKellyMaxStake
	}
	if c.OverfitROIThreshold <= 0 {
		c.OverfitROIThreshold = DefaultOverfitROIThreshold
	}
	if c.OverfitNaiveMultiple <= 0 {
		c.OverfitNaiveMultiple = DefaultOverfitNaiveMultiple
	}
	return c
}

// Engine runs walk-forward simulations: train on everything before the
// cutoff, bet the next window, roll forward with the surviving bankroll.
type Engine struct {
	trainer  *training.Trainer
	features *features.Store
	fixtures repository.FixtureRepository
	results  repository.BacktestResultRepository
	logger   *logrus.Logger
	cfg      Config
}

// NewEngine creates a backtest engine. The result repository may be nil;
// summaries are then not persisted.
func NewEngine(
	trainer *training.Trainer,
	featureStore *features.Store,
	fixtures repository.FixtureRepository,
	results repository.BacktestResultRepository,
	logger *logrus.Logger,
	cfg Config,
) *Engine {
	return &Engine{
		trainer:  trainer,
		features: featureStore,
		fixtures: fixtures,
		results:  results,
		logger:   logger,
		cfg:      cfg.normalize(),
	}
}

// Request describes one walk-forward run.
type Request struct {
	LeagueIDs []int64   `json:"league_ids"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Run executes the walk-forward simulation and returns its summary.
// models.ErrNoData when no completed fixture with odds falls in the range.
func (e *Engine) Run(ctx context.Context, req Request) (*Summary, error) {
	all, err := e.fixtures.CompletedWithOdds(ctx, req.LeagueIDs, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures with odds: %w", err)
	}
	// Incomplete quotes stay in: those fixtures still train the model and
	// are scored, they just cannot be bet.
	var inRange []*models.FixtureWithOdds
	for _, fo := range all {
		if fo.Fixture.Date.Before(req.EndDate) {
			inRange = append(inRange, fo)
		}
	}
	if len(inRange) == 0 {
		return nil, models.ErrNoData
	}

	summary := &Summary{
		LeagueIDs:        req.LeagueIDs,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		StartingBankroll: e.cfg.InitialBankroll,
	}
	model := NewState(e.cfg.InitialBankroll)

	// The benchmark runs over everything loaded, not just the rows the model
	// later bets: it answers what flat favourite-backing would have done
	// with the same data, independent of walk-forward mechanics.
	naive := NewNaiveBenchmark(e.cfg.InitialBankroll)
	for _, fo := range inRange {
		if fo.Odds.IsComplete() {
			naive.Bet(fo)
		}
	}

	periods := Periods(req.StartDate, req.EndDate, e.cfg.StepMonths, e.cfg.InitialCutoffSteps)
	for i, period := range periods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		train, test := windowSplit(inRange, period)
		if len(test) == 0 {
			// Data ran out before the calendar did.
			e.logger.WithFields(logrus.Fields{
				"abandoned_periods": len(periods) - i,
				"cutoff":            period.Cutoff.Format("2006-01-02"),
			}).Warn("Fixture data ran out before the calendar; abandoning remaining periods")
			break
		}

		result := e.runPeriod(ctx, period, train, test, model)
		summary.Periods = append(summary.Periods, result)

		e.logger.WithFields(logrus.Fields{
			"cutoff":   period.Cutoff.Format("2006-01-02"),
			"skipped":  result.Skipped,
			"bets":     result.Bets,
			"bankroll": model.Bankroll,
		}).Info("Walk-forward period complete")
	}

	summary.finalize(model, naive, e.cfg.OverfitROIThreshold, e.cfg.OverfitNaiveMultiple)
	if summary.PeriodsSimulated == 0 {
		return nil, fmt.Errorf("%w: no walk-forward period produced a simulated test window", models.ErrNoData)
	}

	if e.results != nil {
		if err := e.persist(ctx, req, summary); err != nil {
			e.logger.WithError(err).Warn("Failed to persist backtest summary")
		}
	}
	return summary, nil
}

// windowSplit partitions fixtures into the period's train and test windows.
func windowSplit(all []*models.FixtureWithOdds, p Period) (train, test []*models.FixtureWithOdds) {
	for _, fo := range all {
		d := fo.Fixture.Date
		switch {
		case d.Before(p.Cutoff):
			if !d.Before(p.Start) {
				train = append(train, fo)
			}
		case d.Before(p.TestEnd):
			test = append(test, fo)
		}
	}
	return train, test
}

func (e *Engine) runPeriod(ctx context.Context, period Period, train, test []*models.FixtureWithOdds, model *State) PeriodResult {
	result := PeriodResult{
		Period:        period,
		TrainFixtures: len(train),
		TestFixtures:  len(test),
		StartBankroll: model.Bankroll,
		EndBankroll:   model.Bankroll,
	}

	if len(train) < e.cfg.MinTrainSamples {
		result.Skipped = true
		result.SkipReason = fmt.Sprintf("%d training fixtures, need %d", len(train), e.cfg.MinTrainSamples)
		return result
	}

	trainFixtures := make([]*models.Fixture, len(train))
	for i, fo := range train {
		trainFixtures[i] = &fo.Fixture
	}
	bundle, _, err := e.trainer.Fit(ctx, models.Target1X2, trainFixtures)
	if errors.Is(err, models.ErrInsufficientData) {
		result.Skipped = true
		result.SkipReason = err.Error()
		return result
	}
	if err != nil {
		result.Skipped = true
		result.SkipReason = fmt.Sprintf("training failed: %v", err)
		e.logger.WithError(err).Warn("Walk-forward period training failed")
		return result
	}

	testFixtures := make([]*models.Fixture, len(test))
	for i, fo := range test {
		testFixtures[i] = &fo.Fixture
	}
	vectors, err := e.features.VectorsFor(ctx, testFixtures)
	if err != nil {
		result.Skipped = true
		result.SkipReason = fmt.Sprintf("feature build failed: %v", err)
		return result
	}

	// Period-local state so drawdown is measured within the window, seeded
	// with the carried bankroll.
	periodState := NewState(model.Bankroll)
	var probRows [][]float64
	var labels []int

	for _, fo := range test {
		vector, ok := vectors[fo.Fixture.ID]
		if !ok {
			result.NotEvaluated++
			continue
		}
		probs, err := bundle.PredictProba(vector)
		if err != nil {
			result.NotEvaluated++
			continue
		}

		row := []float64{
			probs[models.OutcomeAway],
			probs[models.OutcomeDraw],
			probs[models.OutcomeHome],
		}
		label, err := training.Label(&fo.Fixture, models.Target1X2)
		if err != nil {
			result.NotEvaluated++
			continue
		}
		probRows = append(probRows, row)
		labels = append(labels, label)

		// Scored, but unbettable without a full quote.
		if !fo.Odds.IsComplete() {
			result.NotEvaluated++
			continue
		}
		e.placeBet(fo, probs, periodState)
	}

	for _, bet := range periodState.Bets {
		model.Settle(bet)
	}

	result.Bets = len(periodState.Bets)
	result.Wins = periodState.Wins
	result.EndBankroll = periodState.Bankroll
	result.PnL = periodState.Bankroll - result.StartBankroll
	result.Drawdown = periodState.MaxDrawdown
	result.BrierScore = calibration.BrierScore(probRows, labels)
	result.LogLoss = calibration.LogLoss(probRows, labels)
	return result
}

// placeBet stakes the best-edge outcome when it clears the threshold.
func (e *Engine) placeBet(fo *models.FixtureWithOdds, probs map[string]float64, state *State) {
	oh, od, oa := fo.Odds.Floats()
	margin := fo.Odds.Margin()

	bestOutcome, bestOdds, bestEdge := "", 0.0, 0.0
	for _, o := range []struct {
		name string
		odds float64
	}{
		{models.OutcomeHome, oh},
		{models.OutcomeDraw, od},
		{models.OutcomeAway, oa},
	} {
		edge := Edge(probs[o.name], o.odds, margin)
		if edge > bestEdge {
			bestOutcome, bestOdds, bestEdge = o.name, o.odds, edge
		}
	}
	if bestEdge < e.cfg.EdgeThreshold {
		return
	}

	p := probs[bestOutcome]
	fraction := KellyStake(p, bestOdds, e.cfg.KellyFraction, e.cfg.KellyMaxStake)
	if fraction <= 0 {
		return
	}
	stake := state.Bankroll * fraction

	won := fo.Fixture.Outcome() == bestOutcome
	pnl := -stake
	if won {
		pnl = stake * (bestOdds - 1.0)
	}
	state.Settle(&Bet{
		FixtureID: fo.Fixture.ID,
		Date:      fo.Fixture.Date,
		Outcome:   bestOutcome,
		Odds:      bestOdds,
		ModelProb: p,
		Edge:      bestEdge,
		Stake:     stake,
		PnL:       pnl,
		Won:       won,
	})
}

func (e *Engine) persist(ctx context.Context, req Request, summary *Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return e.results.Save(ctx, &models.BacktestResult{
		LeagueIDs: req.LeagueIDs,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Summary:   payload,
	})
}

package backtest

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/gbdt"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/rating"
	"github.com/yourusername/edge-finder/internal/repository"
	"github.com/yourusername/edge-finder/internal/training"
)

type memoryData struct {
	fixtures []*models.Fixture
	quotes   map[int64]*models.OddsQuote
}

func (m *memoryData) completed(filter func(*models.Fixture) bool) []*models.Fixture {
	var out []*models.Fixture
	for _, f := range m.fixtures {
		if f.IsCompleted() && filter(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *memoryData) CompletedByLeagueBefore(_ context.Context, leagueID int64, before time.Time) ([]*models.Fixture, error) {
	return m.completed(func(f *models.Fixture) bool {
		return f.LeagueID == leagueID && f.Date.Before(before)
	}), nil
}

func (m *memoryData) CompletedByLeague(_ context.Context, leagueID int64) ([]*models.Fixture, error) {
	return m.completed(func(f *models.Fixture) bool { return f.LeagueID == leagueID }), nil
}

func (m *memoryData) RecentForTeamInLeague(_ context.Context, leagueID, teamID int64, before time.Time, limit int) ([]*models.Fixture, error) {
	all := m.completed(func(f *models.Fixture) bool {
		return f.LeagueID == leagueID && f.Date.Before(before) &&
			(f.HomeTeamID == teamID || f.AwayTeamID == teamID)
	})
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryData) LastMatchBefore(_ context.Context, teamID int64, before time.Time) (*models.Fixture, error) {
	all := m.completed(func(f *models.Fixture) bool {
		return f.Date.Before(before) && (f.HomeTeamID == teamID || f.AwayTeamID == teamID)
	})
	if len(all) == 0 {
		return nil, models.ErrNotFound
	}
	return all[len(all)-1], nil
}

func (m *memoryData) CountForTeamBetween(_ context.Context, teamID int64, from, before time.Time) (int, error) {
	return len(m.completed(func(f *models.Fixture) bool {
		return !f.Date.Before(from) && f.Date.Before(before) &&
			(f.HomeTeamID == teamID || f.AwayTeamID == teamID)
	})), nil
}

func (m *memoryData) HeadToHead(_ context.Context, homeID, awayID int64, before time.Time, limit int) ([]*models.Fixture, error) {
	all := m.completed(func(f *models.Fixture) bool {
		return f.Date.Before(before) &&
			((f.HomeTeamID == homeID && f.AwayTeamID == awayID) ||
				(f.HomeTeamID == awayID && f.AwayTeamID == homeID))
	})
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryData) CompletedWithOdds(_ context.Context, leagueIDs []int64, from time.Time) ([]*models.FixtureWithOdds, error) {
	inSet := func(id int64) bool {
		if len(leagueIDs) == 0 {
			return true
		}
		for _, l := range leagueIDs {
			if l == id {
				return true
			}
		}
		return false
	}
	var out []*models.FixtureWithOdds
	for _, f := range m.completed(func(f *models.Fixture) bool {
		return inSet(f.LeagueID) && !f.Date.Before(from)
	}) {
		q, ok := m.quotes[f.ID]
		if !ok {
			continue
		}
		out = append(out, &models.FixtureWithOdds{Fixture: *f, Odds: *q})
	}
	return out, nil
}

func (m *memoryData) RecentCompleted(_ context.Context, _ []int64, limit int) ([]*models.Fixture, error) {
	all := m.completed(func(*models.Fixture) bool { return true })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *memoryData) BestQuote(_ context.Context, fixtureID int64) (*models.OddsQuote, error) {
	q, ok := m.quotes[fixtureID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return q, nil
}

type noEvents struct{}

func (noEvents) AvgCardsForTeam(context.Context, int64, int64, time.Time, int) (*float64, error) {
	return nil, nil
}

type memoryFeatureCache struct {
	rows map[int64]*models.FeatureRow
}

func (m *memoryFeatureCache) SaveBatch(_ context.Context, rows []*models.FeatureRow) error {
	for _, r := range rows {
		m.rows[r.FixtureID] = r
	}
	return nil
}
func (m *memoryFeatureCache) DeleteByLeague(context.Context, int64) error { return nil }
func (m *memoryFeatureCache) Load(_ context.Context, ids []int64) (map[int64]*models.FeatureVector, error) {
	out := make(map[int64]*models.FeatureVector)
	for _, id := range ids {
		if r, ok := m.rows[id]; ok {
			out[id] = r.Vector
		}
	}
	return out, nil
}
func (m *memoryFeatureCache) CachedIDs(context.Context, int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

type memoryResults struct {
	saved []*models.BacktestResult
}

func (m *memoryResults) Save(_ context.Context, r *models.BacktestResult) error {
	m.saved = append(m.saved, r)
	return nil
}
func (m *memoryResults) GetLatest(context.Context, int) ([]*models.BacktestResult, error) {
	return m.saved, nil
}

func intPtr(i int) *int { return &i }

// simulatedLeague generates two fixtures per day where lower team numbers are
// stronger and quotes are priced off the true probabilities with a 5% margin.
func simulatedLeague(days int, seed int64) *memoryData {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2022, 1, 1, 15, 0, 0, 0, time.UTC)
	data := &memoryData{quotes: make(map[int64]*models.OddsQuote)}

	id := int64(0)
	for day := 0; day < days; day++ {
		for match := 0; match < 2; match++ {
			id++
			home := int64(rng.Intn(10) + 1)
			away := int64(rng.Intn(10) + 1)
			for away == home {
				away = int64(rng.Intn(10) + 1)
			}

			pHome := 0.45 + 0.05*float64(away-home)
			if pHome < 0.10 {
				pHome = 0.10
			}
			if pHome > 0.80 {
				pHome = 0.80
			}
			pDraw := 0.25
			pAway := 1 - pHome - pDraw
			// Heavy favourites can push the residual to zero; keep every
			// outcome priceable.
			if pAway < 0.05 {
				pAway = 0.05
				pHome = 1 - pDraw - pAway
			}

			r := rng.Float64()
			var gh, ga int
			switch {
			case r < pHome:
				gh, ga = 1+rng.Intn(3), rng.Intn(1)
			case r < pHome+pDraw:
				gh, ga = 1, 1
			default:
				gh, ga = rng.Intn(1), 1+rng.Intn(3)
			}

			data.fixtures = append(data.fixtures, &models.Fixture{
				ID: id, Date: start.AddDate(0, 0, day), LeagueID: 39,
				HomeTeamID: home, AwayTeamID: away,
				GoalsHome: intPtr(gh), GoalsAway: intPtr(ga), Status: "FT",
			})
			data.quotes[id] = &models.OddsQuote{
				FixtureID: id, MarketID: models.Market1X2,
				Home: decimal.NewFromFloat(1.0 / (pHome * 1.05)),
				Draw: decimal.NewFromFloat(1.0 / (pDraw * 1.05)),
				Away: decimal.NewFromFloat(1.0 / (pAway * 1.05)),
			}
		}
	}
	return data
}

func newTestEngine(t *testing.T, data *memoryData, results repository.BacktestResultRepository, cfg Config) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	ratings := rating.NewEngine(data, logger)
	builder := features.NewBuilder(data, data, noEvents{}, ratings, logger)
	store := features.NewStore(builder, &memoryFeatureCache{rows: make(map[int64]*models.FeatureRow)}, data, logger)

	bundles, err := training.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	trainer := training.NewTrainer(store, data, nil, bundles, logger, training.TrainerConfig{
		MinTrainSamples: cfg.MinTrainSamples,
		Booster:         gbdt.Config{NumRounds: 15, MaxDepth: 3},
	})

	return NewEngine(trainer, store, data, results, logger, cfg)
}

func TestRunNoDataReturnsError(t *testing.T) {
	engine := newTestEngine(t, &memoryData{quotes: map[int64]*models.OddsQuote{}}, nil, Config{})

	_, err := engine.Run(context.Background(), Request{
		StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestRunWalkForwardSimulation(t *testing.T) {
	if testing.Short() {
		t.Skip("full walk-forward simulation")
	}
	data := simulatedLeague(540, 1)
	results := &memoryResults{}
	engine := newTestEngine(t, data, results, Config{
		InitialBankroll: 1000,
		MinTrainSamples: 100,
	})

	summary, err := engine.Run(context.Background(), Request{
		LeagueIDs: []int64{39},
		StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Greater(t, summary.PeriodsSimulated, 0)
	assert.InDelta(t, summary.StartingBankroll+summary.TotalPnL, summary.FinalBankroll, 1e-6)
	assert.LessOrEqual(t, summary.WorstDrawdown, 0.0)
	assert.Equal(t, 1080, summary.Naive.Bets, "the benchmark bets every loaded fixture")
	if summary.TotalBets > 0 {
		assert.GreaterOrEqual(t, summary.WinRate, 0.0)
		assert.LessOrEqual(t, summary.WinRate, 1.0)
	}
	assert.Len(t, results.saved, 1, "summary is persisted")

	// Bankroll must carry across periods.
	prevEnd := summary.StartingBankroll
	for _, p := range summary.Periods {
		assert.InDelta(t, prevEnd, p.StartBankroll, 1e-6)
		prevEnd = p.EndBankroll
	}
}

func TestRunAllPeriodsSkippedReturnsError(t *testing.T) {
	data := simulatedLeague(400, 2)
	engine := newTestEngine(t, data, nil, Config{
		InitialBankroll: 1000,
		MinTrainSamples: 100000, // unreachable: every period is skipped
	})

	_, err := engine.Run(context.Background(), Request{
		StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, models.ErrNoData, "a run with nothing simulated is a failure, not an empty success")
}

func TestRunEndInsideInitialCutoffReturnsError(t *testing.T) {
	// Five months of data against a nine-month initial cutoff: no period can
	// ever produce a test window.
	data := simulatedLeague(150, 5)
	engine := newTestEngine(t, data, nil, Config{
		InitialBankroll: 1000,
		MinTrainSamples: 100,
	})

	_, err := engine.Run(context.Background(), Request{
		StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestRunKeepsIncompleteOddsRowsForTraining(t *testing.T) {
	if testing.Short() {
		t.Skip("full walk-forward simulation")
	}
	data := simulatedLeague(540, 4)
	corrupted := 0
	for id, q := range data.quotes {
		if id%10 == 0 {
			q.Away = decimal.Zero
			corrupted++
		}
	}
	require.Greater(t, corrupted, 0)

	engine := newTestEngine(t, data, nil, Config{
		InitialBankroll: 1000,
		MinTrainSamples: 100,
	})
	summary, err := engine.Run(context.Background(), Request{
		LeagueIDs: []int64{39},
		StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.Periods)

	// Unbettable fixtures still feed the training window in full.
	first := summary.Periods[0]
	expectedTrain := 0
	for _, f := range data.fixtures {
		if f.Date.Before(first.Period.Cutoff) {
			expectedTrain++
		}
	}
	assert.Equal(t, expectedTrain, first.TrainFixtures)

	// In the test windows they are counted, not bet.
	assert.Greater(t, summary.NotEvaluated, 0)
	assert.Equal(t, 1080-corrupted, summary.Naive.Bets)
}

func TestRunStopsWhenDataRunsOut(t *testing.T) {
	// 13 months of data but a 3-year calendar: the loop must break once a
	// test window is empty instead of producing phantom periods.
	data := simulatedLeague(395, 3)
	engine := newTestEngine(t, data, nil, Config{
		InitialBankroll: 1000,
		MinTrainSamples: 100,
	})
	engine.logger.SetLevel(logrus.WarnLevel)
	engine.logger.SetOutput(io.Discard)
	hook := logtest.NewLocal(engine.logger)

	summary, err := engine.Run(context.Background(), Request{
		StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(summary.Periods), 2)

	// The truncation is called out, naming how much calendar was dropped.
	abandoned := false
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "abandoning remaining periods") {
			abandoned = true
			assert.Positive(t, entry.Data["abandoned_periods"])
		}
	}
	assert.True(t, abandoned, "truncated runs must log the abandoned periods")
}

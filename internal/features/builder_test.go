package features

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/rating"
)

// memoryFixtures implements the fixture queries over an in-memory slice, with
// the same date-bound semantics as the SQL implementation.
type memoryFixtures struct {
	fixtures []*models.Fixture
}

func (m *memoryFixtures) completed(filter func(*models.Fixture) bool) []*models.Fixture {
	var out []*models.Fixture
	for _, f := range m.fixtures {
		if f.IsCompleted() && filter(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *memoryFixtures) CompletedByLeagueBefore(_ context.Context, leagueID int64, before time.Time) ([]*models.Fixture, error) {
	return m.completed(func(f *models.Fixture) bool {
		return f.LeagueID == leagueID && f.Date.Before(before)
	}), nil
}

func (m *memoryFixtures) CompletedByLeague(_ context.Context, leagueID int64) ([]*models.Fixture, error) {
	return m.completed(func(f *models.Fixture) bool { return f.LeagueID == leagueID }), nil
}

func (m *memoryFixtures) RecentForTeamInLeague(_ context.Context, leagueID, teamID int64, before time.Time, limit int) ([]*models.Fixture, error) {
	all := m.completed(func(f *models.Fixture) bool {
		return f.LeagueID == leagueID && f.Date.Before(before) &&
			(f.HomeTeamID == teamID || f.AwayTeamID == teamID)
	})
	// Newest first, capped.
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryFixtures) LastMatchBefore(_ context.Context, teamID int64, before time.Time) (*models.Fixture, error) {
	all := m.completed(func(f *models.Fixture) bool {
		return f.Date.Before(before) && (f.HomeTeamID == teamID || f.AwayTeamID == teamID)
	})
	if len(all) == 0 {
		return nil, models.ErrNotFound
	}
	return all[len(all)-1], nil
}

func (m *memoryFixtures) CountForTeamBetween(_ context.Context, teamID int64, from, before time.Time) (int, error) {
	all := m.completed(func(f *models.Fixture) bool {
		return !f.Date.Before(from) && f.Date.Before(before) &&
			(f.HomeTeamID == teamID || f.AwayTeamID == teamID)
	})
	return len(all), nil
}

func (m *memoryFixtures) HeadToHead(_ context.Context, homeID, awayID int64, before time.Time, limit int) ([]*models.Fixture, error) {
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

func (m *memoryFixtures) CompletedWithOdds(_ context.Context, leagueIDs []int64, from time.Time) ([]*models.FixtureWithOdds, error) {
	return nil, nil
}

func (m *memoryFixtures) RecentCompleted(_ context.Context, leagueIDs []int64, limit int) ([]*models.Fixture, error) {
	return nil, nil
}

type memoryOdds struct {
	quotes map[int64]*models.OddsQuote
}

func (m *memoryOdds) BestQuote(_ context.Context, fixtureID int64) (*models.OddsQuote, error) {
	q, ok := m.quotes[fixtureID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return q, nil
}

type memoryEvents struct {
	cards map[int64]*float64
}

func (m *memoryEvents) AvgCardsForTeam(_ context.Context, _, teamID int64, _ time.Time, _ int) (*float64, error) {
	return m.cards[teamID], nil
}

func intPtr(i int) *int { return &i }

func fx(id int64, date time.Time, home, away int64, gh, ga int) *models.Fixture {
	return &models.Fixture{
		ID: id, Date: date, LeagueID: 39,
		HomeTeamID: home, AwayTeamID: away,
		GoalsHome: intPtr(gh), GoalsAway: intPtr(ga),
		Status: "FT",
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestBuilder(fixtures *memoryFixtures, odds *memoryOdds, events *memoryEvents) *Builder {
	logger := quietLogger()
	engine := rating.NewEngine(fixtures, logger)
	return NewBuilder(fixtures, odds, events, engine, logger)
}

func TestBuildComputesFormAndElo(t *testing.T) {
	base := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	fixtures := &memoryFixtures{fixtures: []*models.Fixture{
		fx(1, base, 10, 20, 2, 0),
		fx(2, base.AddDate(0, 0, 7), 20, 10, 0, 3),
		fx(3, base.AddDate(0, 0, 14), 10, 30, 1, 1),
	}}
	upcoming := fx(4, base.AddDate(0, 0, 21), 10, 20, 0, 0)

	b := newTestBuilder(fixtures, &memoryOdds{}, &memoryEvents{})
	v, err := b.Build(context.Background(), upcoming)
	require.NoError(t, err)

	// Team 10: W, W, D over the window -> 7 points over 3 matches.
	assert.InDelta(t, 7.0/3.0, v.HomeFormPts, 1e-9)
	assert.InDelta(t, 5.0, v.HomeGoalDiff5, 1e-9)
	assert.InDelta(t, 2.0/3.0, v.HomeCleanSheetRate, 1e-9)
	assert.Greater(t, v.EloHome, v.EloAway)
	assert.InDelta(t, v.EloHome-v.EloAway, v.EloDiff, 1e-9)
}

func TestBuildNeutralFormForDebutants(t *testing.T) {
	base := time.Date(2024, 8, 10, 15, 0, 0, 0, time.UTC)
	fixtures := &memoryFixtures{}
	upcoming := fx(1, base, 10, 20, 0, 0)

	b := newTestBuilder(fixtures, &memoryOdds{}, &memoryEvents{})
	v, err := b.Build(context.Background(), upcoming)
	require.NoError(t, err)

	assert.Zero(t, v.HomeFormPts)
	assert.Zero(t, v.AwayBTTSRate)
	assert.Equal(t, rating.DefaultBaseline, v.EloHome)
	assert.Nil(t, v.HomeRestDays, "a team with no prior match has unknown rest, not zero")
	assert.Zero(t, v.HomeMatchesLast30D)
}

func TestBuildNeverSeesFutureMatches(t *testing.T) {
	base := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	// One match before the target, one after. Only the earlier one may
	// influence any feature.
	fixtures := &memoryFixtures{fixtures: []*models.Fixture{
		fx(1, base, 10, 20, 1, 0),
		fx(3, base.AddDate(0, 0, 14), 10, 20, 0, 5),
	}}
	target := fx(2, base.AddDate(0, 0, 7), 10, 20, 0, 0)

	b := newTestBuilder(fixtures, &memoryOdds{}, &memoryEvents{})
	v, err := b.Build(context.Background(), target)
	require.NoError(t, err)

	// The future 0-5 thrashing must not appear anywhere.
	assert.InDelta(t, 3.0, v.HomeFormPts, 1e-9)
	assert.InDelta(t, 1.0, v.H2HHomeWins, 1e-9)
	assert.InDelta(t, 0.0, v.H2HAwayWins, 1e-9)
	require.NotNil(t, v.H2HAvgGoals)
	assert.InDelta(t, 1.0, *v.H2HAvgGoals, 1e-9)
	assert.Greater(t, v.EloDiff, 0.0)
}

func TestBuildH2HFromHomePerspectiveEitherVenue(t *testing.T) {
	base := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	// Team 10 beat team 20 away from home.
	fixtures := &memoryFixtures{fixtures: []*models.Fixture{
		fx(1, base, 20, 10, 0, 2),
	}}
	upcoming := fx(2, base.AddDate(0, 0, 30), 10, 20, 0, 0)

	b := newTestBuilder(fixtures, &memoryOdds{}, &memoryEvents{})
	v, err := b.Build(context.Background(), upcoming)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, v.H2HHomeWins, 1e-9)
	assert.Zero(t, v.H2HAwayWins)
}

func TestBuildOddsFeatures(t *testing.T) {
	base := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	upcoming := fx(1, base, 10, 20, 0, 0)
	odds := &memoryOdds{quotes: map[int64]*models.OddsQuote{
		1: {
			FixtureID: 1, MarketID: models.Market1X2,
			Home: decimal.NewFromFloat(2.0),
			Draw: decimal.NewFromFloat(3.5),
			Away: decimal.NewFromFloat(4.0),
		},
	}}

	b := newTestBuilder(&memoryFixtures{}, odds, &memoryEvents{})
	v, err := b.Build(context.Background(), upcoming)
	require.NoError(t, err)

	require.NotNil(t, v.OddsHome)
	assert.InDelta(t, 2.0, *v.OddsHome, 1e-9)
	require.NotNil(t, v.ImpliedProbHome)
	sum := *v.ImpliedProbHome + *v.ImpliedProbDraw + *v.ImpliedProbAway
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Margin removal keeps ordering: shortest price, highest probability.
	assert.Greater(t, *v.ImpliedProbHome, *v.ImpliedProbAway)
}

func TestBuildMissingOddsLeavesMarketFeaturesNil(t *testing.T) {
	base := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	upcoming := fx(1, base, 10, 20, 0, 0)

	b := newTestBuilder(&memoryFixtures{}, &memoryOdds{}, &memoryEvents{})
	v, err := b.Build(context.Background(), upcoming)
	require.NoError(t, err)

	assert.Nil(t, v.OddsHome)
	assert.Nil(t, v.ImpliedProbHome)
}

func TestBuildCornersAlwaysNil(t *testing.T) {
	base := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	cards := 2.4
	events := &memoryEvents{cards: map[int64]*float64{10: &cards}}

	b := newTestBuilder(&memoryFixtures{}, &memoryOdds{}, events)
	v, err := b.Build(context.Background(), fx(1, base, 10, 20, 0, 0))
	require.NoError(t, err)

	require.NotNil(t, v.HomeAvgCards5)
	assert.InDelta(t, 2.4, *v.HomeAvgCards5, 1e-9)
	assert.Nil(t, v.AwayAvgCards5)
	assert.Nil(t, v.HomeAvgCorners5)
	assert.Nil(t, v.AwayAvgCorners5)
}

func TestOrderedMatchesColumnContract(t *testing.T) {
	v := &models.FeatureVector{EloHome: 1510, EloAway: 1490, EloDiff: 20}
	row := Ordered(v)

	require.Len(t, row, len(Columns))
	assert.Equal(t, 31, len(Columns))
	assert.InDelta(t, 1510.0, row[0], 1e-9)
	assert.InDelta(t, 20.0, row[2], 1e-9)
}

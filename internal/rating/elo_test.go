package rating

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/edge-finder/internal/models"
)

type fakeMatchSource struct {
	fixtures []*models.Fixture
}

func (s *fakeMatchSource) CompletedByLeagueBefore(ctx context.Context, leagueID int64, before time.Time) ([]*models.Fixture, error) {
	var out []*models.Fixture
	for _, f := range s.fixtures {
		if f.LeagueID == leagueID && f.Date.Before(before) {
			out = append(out, f)
		}
	}
	return out, nil
}

func intPtr(i int) *int { return &i }

func completedFixture(id int64, date time.Time, home, away int64, gh, ga int) *models.Fixture {
	return &models.Fixture{
		ID:         id,
		Date:       date,
		LeagueID:   39,
		HomeTeamID: home,
		AwayTeamID: away,
		GoalsHome:  intPtr(gh),
		GoalsAway:  intPtr(ga),
		Status:     "FT",
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestExpectedScore(t *testing.T) {
	tests := []struct {
		name          string
		ratingHome    float64
		ratingAway    float64
		homeAdvantage float64
		expected      float64
	}{
		{"equal ratings no advantage", 1500, 1500, 0, 0.5},
		{"equal ratings with home advantage", 1500, 1500, 100, 0.64},
		{"stronger home side", 1700, 1500, 0, 0.76},
		{"stronger away side", 1500, 1700, 0, 0.24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpectedScore(tt.ratingHome, tt.ratingAway, tt.homeAdvantage)
			assert.InDelta(t, tt.expected, got, 0.005)
		})
	}
}

func TestUpdateIsZeroSum(t *testing.T) {
	home, away := Update(1520, 1480, 1.0, 20, 100)

	assert.InDelta(t, 3000.0, home+away, 1e-9)
	assert.Greater(t, home, 1520.0)
	assert.Less(t, away, 1480.0)
}

func TestUpdateDrawPenalisesFavourite(t *testing.T) {
	// With home advantage the home side is favourite at equal ratings, so a
	// draw costs it rating.
	home, away := Update(1500, 1500, 0.5, 20, 100)

	assert.Less(t, home, 1500.0)
	assert.Greater(t, away, 1500.0)
}

func TestRatingsReplaysChronologically(t *testing.T) {
	base := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	source := &fakeMatchSource{fixtures: []*models.Fixture{
		completedFixture(1, base, 10, 20, 2, 0),
		completedFixture(2, base.AddDate(0, 0, 7), 20, 10, 1, 1),
	}}

	engine := NewEngine(source, testLogger())
	snap, err := engine.Ratings(context.Background(), 39, base.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Len())
	// Team 10 won at home then held the draw away, gaining both times.
	assert.Greater(t, snap.Get(10), DefaultBaseline)
	assert.Less(t, snap.Get(20), DefaultBaseline)
}

func TestRatingsHonoursAsOfBound(t *testing.T) {
	base := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	source := &fakeMatchSource{fixtures: []*models.Fixture{
		completedFixture(1, base, 10, 20, 3, 0),
	}}

	engine := NewEngine(source, testLogger())
	snap, err := engine.Ratings(context.Background(), 39, base)
	require.NoError(t, err)

	// Match dated exactly at the bound must not be replayed.
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, DefaultBaseline, snap.Get(10))
}

func TestRatingsUnseenTeamGetsBaseline(t *testing.T) {
	engine := NewEngine(&fakeMatchSource{}, testLogger(), WithBaseline(1200))
	snap, err := engine.Ratings(context.Background(), 39, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1200.0, snap.Get(999))
}

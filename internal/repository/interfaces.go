package repository

import (
	"context"
	"time"

	"github.com/yourusername/edge-finder/internal/models"
)

// FixtureRepository defines read access to the historical fixture store.
// Every query that feeds feature construction takes a `before` bound so the
// anti-leakage guarantee is enforced in SQL, not by callers remembering to
// filter.
type FixtureRepository interface {
	// CompletedByLeagueBefore returns completed fixtures for a league dated
	// strictly before `before`, in ascending date order (rating replay).
	CompletedByLeagueBefore(ctx context.Context, leagueID int64, before time.Time) ([]*models.Fixture, error)

	// CompletedByLeague returns all completed fixtures for a league in
	// ascending date order.
	CompletedByLeague(ctx context.Context, leagueID int64) ([]*models.Fixture, error)

	// RecentForTeamInLeague returns the team's most recent completed league
	// fixtures strictly before `before`, newest first, at most `limit`.
	RecentForTeamInLeague(ctx context.Context, leagueID, teamID int64, before time.Time, limit int) ([]*models.Fixture, error)

	// LastMatchBefore returns the team's most recent completed fixture across
	// all competitions strictly before `before`. models.ErrNotFound when none.
	LastMatchBefore(ctx context.Context, teamID int64, before time.Time) (*models.Fixture, error)

	// CountForTeamBetween counts the team's completed fixtures (all
	// competitions) with from <= date < before.
	CountForTeamBetween(ctx context.Context, teamID int64, from, before time.Time) (int, error)

	// HeadToHead returns the most recent completed meetings between two teams
	// (either venue ordering) strictly before `before`, newest first.
	HeadToHead(ctx context.Context, homeID, awayID int64, before time.Time, limit int) ([]*models.Fixture, error)

	// CompletedWithOdds returns completed fixtures carrying at least one 1X2
	// quote, dated on or after `from`, ascending. Empty league set means all
	// leagues.
	CompletedWithOdds(ctx context.Context, leagueIDs []int64, from time.Time) ([]*models.FixtureWithOdds, error)

	// RecentCompleted returns up to `limit` of the most recent completed
	// fixtures, re-sorted ascending for chronological splits. Empty league set
	// means all leagues.
	RecentCompleted(ctx context.Context, leagueIDs []int64, limit int) ([]*models.Fixture, error)
}

// OddsRepository defines read access to bookmaker quotes.
type OddsRepository interface {
	// BestQuote returns the first recorded 1X2 quote for a fixture.
	// models.ErrNotFound when the fixture has no quote.
	BestQuote(ctx context.Context, fixtureID int64) (*models.OddsQuote, error)
}

// EventRepository defines read access to per-fixture disciplinary events.
// Implementations must degrade to (nil, nil) when the event source is absent.
type EventRepository interface {
	// AvgCardsForTeam averages the team's card count over its last `window`
	// completed league fixtures strictly before `before`. nil when no data.
	AvgCardsForTeam(ctx context.Context, leagueID, teamID int64, before time.Time, window int) (*float64, error)
}

// FeatureStoreRepository is the fixture-keyed cache of computed feature
// vectors. Not authoritative: vectors are always reproducible from fixtures
// and odds.
type FeatureStoreRepository interface {
	SaveBatch(ctx context.Context, rows []*models.FeatureRow) error
	DeleteByLeague(ctx context.Context, leagueID int64) error
	Load(ctx context.Context, fixtureIDs []int64) (map[int64]*models.FeatureVector, error)
	CachedIDs(ctx context.Context, leagueID int64) (map[int64]struct{}, error)
}

// ModelRepository persists trained-model metadata rows.
type ModelRepository interface {
	Create(ctx context.Context, model *models.Model) error
	LatestVersion(ctx context.Context, target string) (int, error)
}

// BacktestResultRepository persists aggregate walk-forward summaries.
type BacktestResultRepository interface {
	Save(ctx context.Context, result *models.BacktestResult) error
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error)
}

// LeagueRepository defines read access to league reference data.
type LeagueRepository interface {
	Names(ctx context.Context, leagueIDs []int64) ([]string, error)
	AllIDs(ctx context.Context) ([]int64, error)
}

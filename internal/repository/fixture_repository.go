package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/models"
)

// completedFilter restricts queries to fixtures with a final recorded score.
const completedFilter = `status_short IN ('FT', 'AET', 'PEN')
		AND goals_home IS NOT NULL AND goals_away IS NOT NULL`

const fixtureColumns = `fixture_id, date, league_id, home_team_id, away_team_id, goals_home, goals_away, status_short`

// PostgresFixtureRepository implements FixtureRepository for PostgreSQL
type PostgresFixtureRepository struct {
	db *database.DB
}

// NewPostgresFixtureRepository creates a new fixture repository
func NewPostgresFixtureRepository(db *database.DB) FixtureRepository {
	return &PostgresFixtureRepository{db: db}
}

func scanFixture(row pgx.Row) (*models.Fixture, error) {
	f := &models.Fixture{}
	err := row.Scan(
		&f.ID, &f.Date, &f.LeagueID, &f.HomeTeamID, &f.AwayTeamID,
		&f.GoalsHome, &f.GoalsAway, &f.Status,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func collectFixtures(rows pgx.Rows) ([]*models.Fixture, error) {
	defer rows.Close()

	var fixtures []*models.Fixture
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture: %w", err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

// CompletedByLeagueBefore returns completed league fixtures dated strictly
// before the given date, oldest first. The date bound is the anti-leakage
// guarantee for rating replay.
func (r *PostgresFixtureRepository) CompletedByLeagueBefore(ctx context.Context, leagueID int64, before time.Time) ([]*models.Fixture, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fixtures
		WHERE league_id = $1 AND %s AND date < $2
		ORDER BY date ASC
	`, fixtureColumns, completedFilter)

	rows, err := r.db.GetPool().Query(ctx, query, leagueID, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query league fixtures: %w", err)
	}
	return collectFixtures(rows)
}

// CompletedByLeague returns all completed fixtures for a league, oldest first.
func (r *PostgresFixtureRepository) CompletedByLeague(ctx context.Context, leagueID int64) ([]*models.Fixture, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fixtures
		WHERE league_id = $1 AND %s
		ORDER BY date ASC
	`, fixtureColumns, completedFilter)

	rows, err := r.db.GetPool().Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query league fixtures: %w", err)
	}
	return collectFixtures(rows)
}

// RecentForTeamInLeague returns a team's most recent completed league
// fixtures strictly before the given date, newest first.
func (r *PostgresFixtureRepository) RecentForTeamInLeague(ctx context.Context, leagueID, teamID int64, before time.Time, limit int) ([]*models.Fixture, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fixtures
		WHERE league_id = $1 AND %s AND date < $2
			AND (home_team_id = $3 OR away_team_id = $3)
		ORDER BY date DESC
		LIMIT $4
	`, fixtureColumns, completedFilter)

	rows, err := r.db.GetPool().Query(ctx, query, leagueID, before, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query team form fixtures: %w", err)
	}
	return collectFixtures(rows)
}

// LastMatchBefore returns the team's most recent completed fixture across all
// competitions strictly before the given date.
func (r *PostgresFixtureRepository) LastMatchBefore(ctx context.Context, teamID int64, before time.Time) (*models.Fixture, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fixtures
		WHERE (home_team_id = $1 OR away_team_id = $1) AND %s AND date < $2
		ORDER BY date DESC
		LIMIT 1
	`, fixtureColumns, completedFilter)

	f, err := scanFixture(r.db.GetPool().QueryRow(ctx, query, teamID, before))
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last match: %w", err)
	}
	return f, nil
}

// CountForTeamBetween counts completed fixtures for a team in [from, before).
func (r *PostgresFixtureRepository) CountForTeamBetween(ctx context.Context, teamID int64, from, before time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM fixtures
		WHERE (home_team_id = $1 OR away_team_id = $1) AND %s
			AND date >= $2 AND date < $3
	`, completedFilter)

	var count int
	if err := r.db.GetPool().QueryRow(ctx, query, teamID, from, before).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count team fixtures: %w", err)
	}
	return count, nil
}

// HeadToHead returns the most recent completed meetings between two teams in
// either venue ordering, newest first.
func (r *PostgresFixtureRepository) HeadToHead(ctx context.Context, homeID, awayID int64, before time.Time, limit int) ([]*models.Fixture, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fixtures
		WHERE %s AND date < $3
			AND ((home_team_id = $1 AND away_team_id = $2)
				OR (home_team_id = $2 AND away_team_id = $1))
		ORDER BY date DESC
		LIMIT $4
	`, fixtureColumns, completedFilter)

	rows, err := r.db.GetPool().Query(ctx, query, homeID, awayID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query head-to-head fixtures: %w", err)
	}
	return collectFixtures(rows)
}

// CompletedWithOdds returns completed fixtures that carry at least one 1X2
// quote, dated on or after `from`, oldest first. One quote per fixture: the
// first recorded one.
func (r *PostgresFixtureRepository) CompletedWithOdds(ctx context.Context, leagueIDs []int64, from time.Time) ([]*models.FixtureWithOdds, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (f.fixture_id)
			f.fixture_id, f.date, f.league_id, f.home_team_id, f.away_team_id,
			f.goals_home, f.goals_away, f.status_short,
			o.odds_home, o.odds_draw, o.odds_away
		FROM fixtures f
		JOIN odds o ON o.fixture_id = f.fixture_id AND o.market_id = $1
		WHERE f.%s AND f.date >= $2
			AND (cardinality($3::bigint[]) = 0 OR f.league_id = ANY($3))
		ORDER BY f.fixture_id, o.id ASC
	`, completedFilterAliased("f"))

	if leagueIDs == nil {
		leagueIDs = []int64{}
	}
	rows, err := r.db.GetPool().Query(ctx, query, models.Market1X2, from, leagueIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixtures with odds: %w", err)
	}
	defer rows.Close()

	var results []*models.FixtureWithOdds
	for rows.Next() {
		fo := &models.FixtureWithOdds{}
		f := &fo.Fixture
		q := &fo.Odds
		err := rows.Scan(
			&f.ID, &f.Date, &f.LeagueID, &f.HomeTeamID, &f.AwayTeamID,
			&f.GoalsHome, &f.GoalsAway, &f.Status,
			&q.Home, &q.Draw, &q.Away,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture with odds: %w", err)
		}
		q.FixtureID = f.ID
		q.MarketID = models.Market1X2
		results = append(results, fo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DISTINCT ON forces fixture_id ordering; restore chronological order here.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Fixture.Date.Before(results[j].Fixture.Date)
	})
	return results, nil
}

// RecentCompleted returns up to `limit` of the most recent completed
// fixtures, re-sorted oldest first for chronological splitting.
func (r *PostgresFixtureRepository) RecentCompleted(ctx context.Context, leagueIDs []int64, limit int) ([]*models.Fixture, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fixtures
		WHERE %s
			AND (cardinality($1::bigint[]) = 0 OR league_id = ANY($1))
		ORDER BY date DESC
		LIMIT $2
	`, fixtureColumns, completedFilter)

	if leagueIDs == nil {
		leagueIDs = []int64{}
	}
	rows, err := r.db.GetPool().Query(ctx, query, leagueIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent fixtures: %w", err)
	}
	fixtures, err := collectFixtures(rows)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(fixtures, func(i, j int) bool {
		return fixtures[i].Date.Before(fixtures[j].Date)
	})
	return fixtures, nil
}

func completedFilterAliased(alias string) string {
	return fmt.Sprintf(`status_short IN ('FT', 'AET', 'PEN')
			AND %s.goals_home IS NOT NULL AND %s.goals_away IS NOT NULL`, alias, alias)
}

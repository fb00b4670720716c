package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/edge-finder/internal/database"
)

// PostgresEventRepository implements EventRepository for PostgreSQL
type PostgresEventRepository struct {
	db *database.DB
}

// NewPostgresEventRepository creates a new event repository
func NewPostgresEventRepository(db *database.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

// AvgCardsForTeam averages the team's card count over its last `window`
// completed league fixtures before the given date. Returns nil when the team
// has no card events in the window; disciplinary data is an optional signal
// and its absence never fails feature construction.
func (r *PostgresEventRepository) AvgCardsForTeam(ctx context.Context, leagueID, teamID int64, before time.Time, window int) (*float64, error) {
	query := `
		WITH recent AS (
			SELECT f.fixture_id
			FROM fixtures f
			WHERE f.league_id = $1
				AND (f.home_team_id = $2 OR f.away_team_id = $2)
				AND f.status_short IN ('FT', 'AET', 'PEN')
				AND f.goals_home IS NOT NULL AND f.goals_away IS NOT NULL
				AND f.date < $3
			ORDER BY f.date DESC
			LIMIT $4
		)
		SELECT AVG(per_match.cards)::float8
		FROM (
			SELECT r.fixture_id, COUNT(e.id) AS cards
			FROM recent r
			JOIN fixture_events e ON e.fixture_id = r.fixture_id
				AND e.team_id = $2
				AND e.event_type = 'Card'
			GROUP BY r.fixture_id
		) per_match
	`

	var avg *float64
	if err := r.db.GetPool().QueryRow(ctx, query, leagueID, teamID, before, window).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average card counts: %w", err)
	}
	return avg, nil
}

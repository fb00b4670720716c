package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/edge-finder/internal/database"
)

// PostgresLeagueRepository implements LeagueRepository for PostgreSQL
type PostgresLeagueRepository struct {
	db *database.DB
}

// NewPostgresLeagueRepository creates a new league repository
func NewPostgresLeagueRepository(db *database.DB) LeagueRepository {
	return &PostgresLeagueRepository{db: db}
}

// Names returns league display names for the given IDs, sorted by ID.
func (r *PostgresLeagueRepository) Names(ctx context.Context, leagueIDs []int64) ([]string, error) {
	if len(leagueIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.GetPool().Query(ctx, `
		SELECT name FROM leagues WHERE league_id = ANY($1) ORDER BY league_id
	`, leagueIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query league names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan league name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AllIDs returns every known league ID.
func (r *PostgresLeagueRepository) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.GetPool().Query(ctx, `SELECT league_id FROM leagues ORDER BY league_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query league ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan league id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

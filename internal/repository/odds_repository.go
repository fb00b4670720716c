package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/models"
)

// PostgresOddsRepository implements OddsRepository for PostgreSQL
type PostgresOddsRepository struct {
	db *database.DB
}

// NewPostgresOddsRepository creates a new odds repository
func NewPostgresOddsRepository(db *database.DB) OddsRepository {
	return &PostgresOddsRepository{db: db}
}

// BestQuote returns the first recorded 1X2 quote for a fixture.
func (r *PostgresOddsRepository) BestQuote(ctx context.Context, fixtureID int64) (*models.OddsQuote, error) {
	query := `
		SELECT fixture_id, market_id, odds_home, odds_draw, odds_away
		FROM odds
		WHERE fixture_id = $1 AND market_id = $2
		ORDER BY id ASC
		LIMIT 1
	`

	q := &models.OddsQuote{}
	err := r.db.GetPool().QueryRow(ctx, query, fixtureID, models.Market1X2).Scan(
		&q.FixtureID, &q.MarketID, &q.Home, &q.Draw, &q.Away,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get odds quote: %w", err)
	}
	return q, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/models"
)

// PostgresBacktestResultRepository implements BacktestResultRepository for PostgreSQL
type PostgresBacktestResultRepository struct {
	db *database.DB
}

// NewPostgresBacktestResultRepository creates a new backtest result repository
func NewPostgresBacktestResultRepository(db *database.DB) BacktestResultRepository {
	return &PostgresBacktestResultRepository{db: db}
}

// Save persists the aggregate summary of one walk-forward run.
func (r *PostgresBacktestResultRepository) Save(ctx context.Context, result *models.BacktestResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	query := `
		INSERT INTO backtest_results (id, league_ids, start_date, end_date, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		result.ID, result.LeagueIDs, result.StartDate, result.EndDate, result.Summary,
	).Scan(&result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save backtest result: %w", err)
	}
	return nil
}

// GetLatest returns the most recent stored runs, newest first.
func (r *PostgresBacktestResultRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error) {
	query := `
		SELECT id, league_ids, start_date, end_date, summary, created_at
		FROM backtest_results
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest results: %w", err)
	}
	defer rows.Close()

	var results []*models.BacktestResult
	for rows.Next() {
		res := &models.BacktestResult{}
		err := rows.Scan(&res.ID, &res.LeagueIDs, &res.StartDate, &res.EndDate, &res.Summary, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

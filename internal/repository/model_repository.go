package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/models"
)

// PostgresModelRepository implements ModelRepository for PostgreSQL
type PostgresModelRepository struct {
	db *database.DB
}

// NewPostgresModelRepository creates a new model repository
func NewPostgresModelRepository(db *database.DB) ModelRepository {
	return &PostgresModelRepository{db: db}
}

// Create inserts a metadata row for a freshly trained model version.
func (r *PostgresModelRepository) Create(ctx context.Context, model *models.Model) error {
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}

	query := `
		INSERT INTO ml_models (id, target, version, path, metrics, trained_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		model.ID, model.Target, model.Version, model.Path, model.Metrics, model.TrainedAt,
	).Scan(&model.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create model record: %w", err)
	}
	return nil
}

// LatestVersion returns the highest stored version for a target, 0 when the
// target has never been trained.
func (r *PostgresModelRepository) LatestVersion(ctx context.Context, target string) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) FROM ml_models WHERE target = $1`

	var version int
	if err := r.db.GetPool().QueryRow(ctx, query, target).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get latest model version: %w", err)
	}
	return version, nil
}

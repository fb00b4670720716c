package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/models"
)

// PostgresFeatureStoreRepository implements FeatureStoreRepository for
// PostgreSQL. The store is a cache keyed by fixture: rows are always
// reproducible from fixtures and odds, so deletes are safe.
type PostgresFeatureStoreRepository struct {
	db *database.DB
}

// NewPostgresFeatureStoreRepository creates a new feature store repository
func NewPostgresFeatureStoreRepository(db *database.DB) FeatureStoreRepository {
	return &PostgresFeatureStoreRepository{db: db}
}

// SaveBatch upserts a batch of feature rows in one transaction.
func (r *PostgresFeatureStoreRepository) SaveBatch(ctx context.Context, rows []*models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.GetPool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		payload, err := json.Marshal(row.Vector)
		if err != nil {
			return fmt.Errorf("failed to marshal feature vector for fixture %d: %w", row.FixtureID, err)
		}
		batch.Queue(`
			INSERT INTO ml_feature_store (fixture_id, league_id, feature_vector, computed_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (fixture_id) DO UPDATE SET
				league_id = EXCLUDED.league_id,
				feature_vector = EXCLUDED.feature_vector,
				computed_at = NOW()
		`, row.FixtureID, row.LeagueID, payload)
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert feature row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// DeleteByLeague removes every cached vector for a league (force rebuild).
func (r *PostgresFeatureStoreRepository) DeleteByLeague(ctx context.Context, leagueID int64) error {
	if _, err := r.db.GetPool().Exec(ctx, `DELETE FROM ml_feature_store WHERE league_id = $1`, leagueID); err != nil {
		return fmt.Errorf("failed to delete cached features: %w", err)
	}
	return nil
}

// Load returns cached vectors for the given fixtures, keyed by fixture ID.
// Missing fixtures are simply absent from the map.
func (r *PostgresFeatureStoreRepository) Load(ctx context.Context, fixtureIDs []int64) (map[int64]*models.FeatureVector, error) {
	if len(fixtureIDs) == 0 {
		return map[int64]*models.FeatureVector{}, nil
	}

	rows, err := r.db.GetPool().Query(ctx, `
		SELECT fixture_id, feature_vector
		FROM ml_feature_store
		WHERE fixture_id = ANY($1)
	`, fixtureIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached features: %w", err)
	}
	defer rows.Close()

	vectors := make(map[int64]*models.FeatureVector, len(fixtureIDs))
	for rows.Next() {
		var fixtureID int64
		var payload []byte
		if err := rows.Scan(&fixtureID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		v := &models.FeatureVector{}
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feature vector for fixture %d: %w", fixtureID, err)
		}
		vectors[fixtureID] = v
	}
	return vectors, rows.Err()
}

// CachedIDs returns the set of fixture IDs already cached for a league.
func (r *PostgresFeatureStoreRepository) CachedIDs(ctx context.Context, leagueID int64) (map[int64]struct{}, error) {
	rows, err := r.db.GetPool().Query(ctx, `
		SELECT fixture_id FROM ml_feature_store WHERE league_id = $1
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached fixture ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan fixture id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

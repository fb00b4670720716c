package features

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/repository"
	"golang.org/x/time/rate"
)

// saveBatchSize bounds the upsert transaction size during refresh.
const saveBatchSize = 100

// Store is the cache-aware front for feature vectors. Reads hit the database
// cache first and only compute what is missing; the cache is disposable and
// can always be rebuilt from fixtures and odds.
type Store struct {
	builder  *Builder
	cache    repository.FeatureStoreRepository
	fixtures repository.FixtureRepository
	logger   *logrus.Logger
	progress *rate.Limiter
}

// NewStore creates a feature store over the given builder and cache.
func NewStore(builder *Builder, cache repository.FeatureStoreRepository, fixtures repository.FixtureRepository, logger *logrus.Logger) *Store {
	return &Store{
		builder:  builder,
		cache:    cache,
		fixtures: fixtures,
		logger:   logger,
		progress: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// RefreshResult summarises one league refresh.
type RefreshResult struct {
	LeagueID int64 `json:"league_id"`
	Built    int   `json:"built"`
	Cached   int   `json:"cached"`
	Failed   int   `json:"failed"`
}

// Refresh computes and caches vectors for every completed fixture in the
// league that is not already cached. With force, the league's cache is
// dropped first and everything is rebuilt. Individual fixture failures are
// logged and counted, never fatal: a fixture that cannot be described is
// simply excluded from training.
func (s *Store) Refresh(ctx context.Context, leagueID int64, force bool) (*RefreshResult, error) {
	if force {
		if err := s.cache.DeleteByLeague(ctx, leagueID); err != nil {
			return nil, fmt.Errorf("failed to clear feature cache: %w", err)
		}
	}

	cached, err := s.cache.CachedIDs(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached fixtures: %w", err)
	}

	fixtures, err := s.fixtures.CompletedByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list league fixtures: %w", err)
	}

	result := &RefreshResult{LeagueID: leagueID, Cached: len(cached)}
	var pending []*models.FeatureRow
	for i, fixture := range fixtures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := cached[fixture.ID]; ok {
			continue
		}

		vector, err := s.builder.Build(ctx, fixture)
		if err != nil {
			result.Failed++
			s.logger.WithFields(logrus.Fields{
				"fixture_id": fixture.ID,
				"league_id":  leagueID,
			}).WithError(err).Warn("Skipping fixture, feature build failed")
			continue
		}

		pending = append(pending, &models.FeatureRow{
			FixtureID: fixture.ID,
			LeagueID:  leagueID,
			Vector:    vector,
		})
		result.Built++

		if len(pending) >= saveBatchSize {
			if err := s.cache.SaveBatch(ctx, pending); err != nil {
				return nil, fmt.Errorf("failed to save feature batch: %w", err)
			}
			pending = pending[:0]
		}

		if s.progress.Allow() {
			s.logger.WithFields(logrus.Fields{
				"league_id": leagueID,
				"processed": i + 1,
				"total":     len(fixtures),
				"built":     result.Built,
			}).Info("Feature refresh in progress")
		}
	}

	if len(pending) > 0 {
		if err := s.cache.SaveBatch(ctx, pending); err != nil {
			return nil, fmt.Errorf("failed to save feature batch: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"league_id": leagueID,
		"built":     result.Built,
		"cached":    result.Cached,
		"failed":    result.Failed,
	}).Info("Feature refresh complete")
	return result, nil
}

// VectorsFor returns feature vectors for the given fixtures, building and
// caching any that are missing. Fixtures whose build fails are absent from
// the result map.
func (s *Store) VectorsFor(ctx context.Context, fixtures []*models.Fixture) (map[int64]*models.FeatureVector, error) {
	ids := make([]int64, len(fixtures))
	for i, f := range fixtures {
		ids[i] = f.ID
	}

	vectors, err := s.cache.Load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached features: %w", err)
	}

	var pending []*models.FeatureRow
	for _, fixture := range fixtures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := vectors[fixture.ID]; ok {
			continue
		}

		vector, err := s.builder.Build(ctx, fixture)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"fixture_id": fixture.ID,
			}).WithError(err).Warn("Skipping fixture, feature build failed")
			continue
		}
		vectors[fixture.ID] = vector
		pending = append(pending, &models.FeatureRow{
			FixtureID: fixture.ID,
			LeagueID:  fixture.LeagueID,
			Vector:    vector,
		})
		if len(pending) >= saveBatchSize {
			if err := s.cache.SaveBatch(ctx, pending); err != nil {
				return nil, fmt.Errorf("failed to save feature batch: %w", err)
			}
			pending = pending[:0]
		}
	}

	if len(pending) > 0 {
		if err := s.cache.SaveBatch(ctx, pending); err != nil {
			return nil, fmt.Errorf("failed to save feature batch: %w", err)
		}
	}
	return vectors, nil
}

// Build computes a vector for one fixture without touching the cache, for
// ad-hoc prediction of fixtures that have not been played yet.
func (s *Store) Build(ctx context.Context, fixture *models.Fixture) (*models.FeatureVector, error) {
	return s.builder.Build(ctx, fixture)
}

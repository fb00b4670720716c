package repository

import (
	"fmt"

	"github.com/yourusername/edge-finder/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Fixture        FixtureRepository
	Odds           OddsRepository
	Event          EventRepository
	FeatureStore   FeatureStoreRepository
	Model          ModelRepository
	BacktestResult BacktestResultRepository
	League         LeagueRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Fixture:        NewPostgresFixtureRepository(db),
		Odds:           NewPostgresOddsRepository(db),
		Event:          NewPostgresEventRepository(db),
		FeatureStore:   NewPostgresFeatureStoreRepository(db),
		Model:          NewPostgresModelRepository(db),
		BacktestResult: NewPostgresBacktestResultRepository(db),
		League:         NewPostgresLeagueRepository(db),
	}, nil
}

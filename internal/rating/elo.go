// Package rating implements league-scoped Elo ratings replayed from
// completed fixtures in chronological order.
package rating

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/models"
)

// Defaults for the rating system.
const (
	DefaultBaseline      = 1500.0
	DefaultKFactor       = 20.0
	DefaultHomeAdvantage = 100.0
)

// MatchSource provides the completed fixtures needed for a rating replay.
type MatchSource interface {
	CompletedByLeagueBefore(ctx context.Context, leagueID int64, before time.Time) ([]*models.Fixture, error)
}

// Engine computes Elo ratings by replaying a league's completed fixtures.
// Ratings are league-scoped: a team relegated or promoted starts from the
// baseline in its new league.
type Engine struct {
	source        MatchSource
	logger        *logrus.Logger
	kFactor       float64
	homeAdvantage float64
	baseline      float64
}

// Option configures the engine.
type Option func(*Engine)

// WithKFactor overrides the update step size.
func WithKFactor(k float64) Option {
	return func(e *Engine) { e.kFactor = k }
}

// WithHomeAdvantage overrides the rating bonus applied to the home side when
// computing the expected score.
func WithHomeAdvantage(h float64) Option {
	return func(e *Engine) { e.homeAdvantage = h }
}

// WithBaseline overrides the rating assigned to unseen teams.
func WithBaseline(b float64) Option {
	return func(e *Engine) { e.baseline = b }
}

// NewEngine creates a rating engine over the given match source.
func NewEngine(source MatchSource, logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:        source,
		logger:        logger,
		kFactor:       DefaultKFactor,
		homeAdvantage: DefaultHomeAdvantage,
		baseline:      DefaultBaseline,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpectedScore returns the home side's expected score given both ratings and
// the home advantage bonus. Standard logistic Elo curve with a 400-point
// scale.
func ExpectedScore(ratingHome, ratingAway, homeAdvantage float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingAway-(ratingHome+homeAdvantage))/400.0))
}

// Update returns the post-match ratings for both sides. actualHome is 1 for a
// home win, 0.5 for a draw, 0 for an away win. The update is zero-sum: what
// one side gains the other loses.
func Update(ratingHome, ratingAway, actualHome, kFactor, homeAdvantage float64) (float64, float64) {
	expected := ExpectedScore(ratingHome, ratingAway, homeAdvantage)
	delta := kFactor * (actualHome - expected)
	return ratingHome + delta, ratingAway - delta
}

// actualScore maps a completed fixture's result to the home side's score.
func actualScore(f *models.Fixture) (float64, bool) {
	if !f.IsCompleted() {
		return 0, false
	}
	switch f.Outcome() {
	case models.OutcomeHome:
		return 1.0, true
	case models.OutcomeDraw:
		return 0.5, true
	case models.OutcomeAway:
		return 0.0, true
	}
	return 0, false
}

// Ratings replays every completed fixture in the league dated strictly before
// asOf and returns the resulting rating per team. Teams with no prior match
// are absent from the map; use Get on the snapshot for baseline fallback.
func (e *Engine) Ratings(ctx context.Context, leagueID int64, asOf time.Time) (Snapshot, error) {
	fixtures, err := e.source.CompletedByLeagueBefore(ctx, leagueID, asOf)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load fixtures for rating replay: %w", err)
	}

	ratings := make(map[int64]float64)
	replayed := 0
	for _, f := range fixtures {
		actual, ok := actualScore(f)
		if !ok {
			continue
		}

		home, hasHome := ratings[f.HomeTeamID]
		if !hasHome {
			home = e.baseline
		}
		away, hasAway := ratings[f.AwayTeamID]
		if !hasAway {
			away = e.baseline
		}

		ratings[f.HomeTeamID], ratings[f.AwayTeamID] = Update(home, away, actual, e.kFactor, e.homeAdvantage)
		replayed++
	}

	e.logger.WithFields(logrus.Fields{
		"league_id": leagueID,
		"as_of":     asOf.Format(time.RFC3339),
		"matches":   replayed,
		"teams":     len(ratings),
	}).Debug("Replayed Elo ratings")

	return Snapshot{ratings: ratings, baseline: e.baseline}, nil
}

// Snapshot is an immutable point-in-time rating table.
type Snapshot struct {
	ratings  map[int64]float64
	baseline float64
}

// Get returns the team's rating, falling back to the baseline for teams with
// no replayed match.
func (s Snapshot) Get(teamID int64) float64 {
	if r, ok := s.ratings[teamID]; ok {
		return r
	}
	return s.baseline
}

// Len returns the number of rated teams.
func (s Snapshot) Len() int {
	return len(s.ratings)
}

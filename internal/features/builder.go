// Package features turns raw fixtures, odds and events into the fixed-schema
// feature vectors consumed by training and inference. Every signal is
// computed strictly from data dated before the fixture being described.
package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/metrics"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/rating"
	"github.com/yourusername/edge-finder/internal/repository"
)

// Feature construction windows.
const (
	DefaultFormWindow        = 5
	DefaultH2HWindow         = 5
	DefaultFatigueWindowDays = 30
)

// RatingSource provides point-in-time Elo snapshots.
type RatingSource interface {
	Ratings(ctx context.Context, leagueID int64, asOf time.Time) (rating.Snapshot, error)
}

// Builder computes feature vectors for fixtures.
type Builder struct {
	fixtures repository.FixtureRepository
	odds     repository.OddsRepository
	events   repository.EventRepository
	ratings  RatingSource
	logger   *logrus.Logger

	formWindow        int
	h2hWindow         int
	fatigueWindowDays int
}

// BuilderOption configures the builder windows.
type BuilderOption func(*Builder)

// WithFormWindow sets the trailing match count for form features.
func WithFormWindow(n int) BuilderOption {
	return func(b *Builder) { b.formWindow = n }
}

// WithH2HWindow sets the head-to-head lookback count.
func WithH2HWindow(n int) BuilderOption {
	return func(b *Builder) { b.h2hWindow = n }
}

// WithFatigueWindowDays sets the fatigue lookback in days.
func WithFatigueWindowDays(n int) BuilderOption {
	return func(b *Builder) { b.fatigueWindowDays = n }
}

// NewBuilder creates a feature builder over the given data sources.
func NewBuilder(
	fixtures repository.FixtureRepository,
	odds repository.OddsRepository,
	events repository.EventRepository,
	ratings RatingSource,
	logger *logrus.Logger,
	opts ...BuilderOption,
) *Builder {
	b := &Builder{
		fixtures:          fixtures,
		odds:              odds,
		events:            events,
		ratings:           ratings,
		logger:            logger,
		formWindow:        DefaultFormWindow,
		h2hWindow:         DefaultH2HWindow,
		fatigueWindowDays: DefaultFatigueWindowDays,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the feature vector for one fixture as of its kickoff date.
// Rating, form, fatigue and head-to-head failures abort the build; missing
// odds and missing disciplinary data degrade to nil fields.
func (b *Builder) Build(ctx context.Context, fixture *models.Fixture) (*models.FeatureVector, error) {
	v, err := b.build(ctx, fixture)
	if err != nil {
		metrics.FeatureBuildFailuresTotal.Inc()
		return nil, err
	}
	metrics.FeatureBuildsTotal.Inc()
	return v, nil
}

func (b *Builder) build(ctx context.Context, fixture *models.Fixture) (*models.FeatureVector, error) {
	asOf := fixture.Date
	v := &models.FeatureVector{}

	snap, err := b.ratings.Ratings(ctx, fixture.LeagueID, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: ratings for fixture %d: %v", models.ErrFeatureBuild, fixture.ID, err)
	}
	v.EloHome = snap.Get(fixture.HomeTeamID)
	v.EloAway = snap.Get(fixture.AwayTeamID)
	v.EloDiff = v.EloHome - v.EloAway

	homeForm, err := b.teamForm(ctx, fixture.LeagueID, fixture.HomeTeamID, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: home form for fixture %d: %v", models.ErrFeatureBuild, fixture.ID, err)
	}
	awayForm, err := b.teamForm(ctx, fixture.LeagueID, fixture.AwayTeamID, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: away form for fixture %d: %v", models.ErrFeatureBuild, fixture.ID, err)
	}
	v.HomeFormPts = homeForm.ptsPerGame
	v.HomeGoalDiff5 = homeForm.goalDiff
	v.HomeCleanSheetRate = homeForm.cleanSheetRate
	v.HomeBTTSRate = homeForm.bttsRate
	v.HomeOver25Rate = homeForm.over25Rate
	v.AwayFormPts = awayForm.ptsPerGame
	v.AwayGoalDiff5 = awayForm.goalDiff
	v.AwayCleanSheetRate = awayForm.cleanSheetRate
	v.AwayBTTSRate = awayForm.bttsRate
	v.AwayOver25Rate = awayForm.over25Rate

	if err := b.addFatigue(ctx, fixture, asOf, v); err != nil {
		return nil, fmt.Errorf("%w: fatigue for fixture %d: %v", models.ErrFeatureBuild, fixture.ID, err)
	}

	b.addDiscipline(ctx, fixture, asOf, v)

	if err := b.addHeadToHead(ctx, fixture, asOf, v); err != nil {
		return nil, fmt.Errorf("%w: head-to-head for fixture %d: %v", models.ErrFeatureBuild, fixture.ID, err)
	}

	b.addOdds(ctx, fixture, v)

	return v, nil
}

type formStats struct {
	ptsPerGame     float64
	goalDiff       float64
	cleanSheetRate float64
	bttsRate       float64
	over25Rate     float64
}

// teamForm summarises the trailing window of completed league matches. A team
// with no history gets neutral zeros, not an error: early-season fixtures are
// legitimate training rows.
func (b *Builder) teamForm(ctx context.Context, leagueID, teamID int64, asOf time.Time) (formStats, error) {
	matches, err := b.fixtures.RecentForTeamInLeague(ctx, leagueID, teamID, asOf, b.formWindow)
	if err != nil {
		return formStats{}, err
	}
	if len(matches) == 0 {
		return formStats{}, nil
	}

	var pts, goalDiff float64
	var cleanSheets, btts, over25 int
	for _, m := range matches {
		gf, ga := *m.GoalsHome, *m.GoalsAway
		if m.AwayTeamID == teamID {
			gf, ga = ga, gf
		}
		switch {
		case gf > ga:
			pts += 3
		case gf == ga:
			pts += 1
		}
		goalDiff += float64(gf - ga)
		if ga == 0 {
			cleanSheets++
		}
		if gf > 0 && ga > 0 {
			btts++
		}
		if gf+ga > 2 {
			over25++
		}
	}

	n := float64(len(matches))
	return formStats{
		ptsPerGame:     pts / n,
		goalDiff:       goalDiff,
		cleanSheetRate: float64(cleanSheets) / n,
		bttsRate:       float64(btts) / n,
		over25Rate:     float64(over25) / n,
	}, nil
}

func (b *Builder) addFatigue(ctx context.Context, fixture *models.Fixture, asOf time.Time, v *models.FeatureVector) error {
	for _, side := range []struct {
		teamID  int64
		rest    **float64
		matches *float64
	}{
		{fixture.HomeTeamID, &v.HomeRestDays, &v.HomeMatchesLast30D},
		{fixture.AwayTeamID, &v.AwayRestDays, &v.AwayMatchesLast30D},
	} {
		last, err := b.fixtures.LastMatchBefore(ctx, side.teamID, asOf)
		switch {
		case errors.Is(err, models.ErrNotFound):
			// No prior match recorded anywhere: rest is unknown, not zero.
		case err != nil:
			return err
		default:
			days := asOf.Sub(last.Date).Hours() / 24
			*side.rest = &days
		}

		count, err := b.fixtures.CountForTeamBetween(ctx, side.teamID, asOf.AddDate(0, 0, -b.fatigueWindowDays), asOf)
		if err != nil {
			return err
		}
		*side.matches = float64(count)
	}
	return nil
}

// addDiscipline fills card averages, degrading to nil on any failure. Corner
// averages stay nil until an upstream source supplies corner counts.
func (b *Builder) addDiscipline(ctx context.Context, fixture *models.Fixture, asOf time.Time, v *models.FeatureVector) {
	for _, side := range []struct {
		teamID int64
		cards  **float64
	}{
		{fixture.HomeTeamID, &v.HomeAvgCards5},
		{fixture.AwayTeamID, &v.AwayAvgCards5},
	} {
		avg, err := b.events.AvgCardsForTeam(ctx, fixture.LeagueID, side.teamID, asOf, b.formWindow)
		if err != nil {
			b.logger.WithFields(logrus.Fields{
				"fixture_id": fixture.ID,
				"team_id":    side.teamID,
			}).WithError(err).Warn("Card data unavailable, leaving discipline features empty")
			continue
		}
		*side.cards = avg
	}
}

func (b *Builder) addHeadToHead(ctx context.Context, fixture *models.Fixture, asOf time.Time, v *models.FeatureVector) error {
	meetings, err := b.fixtures.HeadToHead(ctx, fixture.HomeTeamID, fixture.AwayTeamID, asOf, b.h2hWindow)
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		return nil
	}

	var totalGoals int
	for _, m := range meetings {
		// Counted from the upcoming home team's perspective regardless of
		// which venue the past meeting was played at.
		switch m.Outcome() {
		case models.OutcomeDraw:
			v.H2HDraws++
		case models.OutcomeHome:
			if m.HomeTeamID == fixture.HomeTeamID {
				v.H2HHomeWins++
			} else {
				v.H2HAwayWins++
			}
		case models.OutcomeAway:
			if m.AwayTeamID == fixture.HomeTeamID {
				v.H2HHomeWins++
			} else {
				v.H2HAwayWins++
			}
		}
		totalGoals += m.TotalGoals()
	}

	avg := float64(totalGoals) / float64(len(meetings))
	v.H2HAvgGoals = &avg
	return nil
}

// addOdds fills the market features. A fixture without a usable quote keeps
// every odds field nil; the model treats that as missing.
func (b *Builder) addOdds(ctx context.Context, fixture *models.Fixture, v *models.FeatureVector) {
	quote, err := b.odds.BestQuote(ctx, fixture.ID)
	if errors.Is(err, models.ErrNotFound) {
		return
	}
	if err != nil {
		b.logger.WithFields(logrus.Fields{
			"fixture_id": fixture.ID,
		}).WithError(err).Warn("Odds lookup failed, leaving market features empty")
		return
	}
	if !quote.IsComplete() {
		return
	}

	oh, od, oa := quote.Floats()
	ph, pd, pa := quote.ImpliedProbabilities()
	v.OddsHome, v.OddsDraw, v.OddsAway = &oh, &od, &oa
	v.ImpliedProbHome, v.ImpliedProbDraw, v.ImpliedProbAway = &ph, &pd, &pa
}

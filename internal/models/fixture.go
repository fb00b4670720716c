package models

import (
	"time"
)

// Match outcomes for the 1X2 market.
const (
	OutcomeHome = "HOME"
	OutcomeDraw = "DRAW"
	OutcomeAway = "AWAY"
)

// Over/under 2.5 goal outcomes.
const (
	OutcomeOver  = "OVER"
	OutcomeUnder = "UNDER"
)

// CompletedStatuses are the status codes of fixtures with a final result.
var CompletedStatuses = []string{"FT", "AET", "PEN"}

// Fixture represents one historical match. It is the source of truth for
// training labels and is never mutated after completion.
type Fixture struct {
	ID         int64     `db:"fixture_id" json:"fixture_id" validate:"required"`
	Date       time.Time `db:"date" json:"date" validate:"required"`
	LeagueID   int64     `db:"league_id" json:"league_id" validate:"required"`
	HomeTeamID int64     `db:"home_team_id" json:"home_team_id" validate:"required"`
	AwayTeamID int64     `db:"away_team_id" json:"away_team_id" validate:"required"`
	GoalsHome  *int      `db:"goals_home" json:"goals_home"`
	GoalsAway  *int      `db:"goals_away" json:"goals_away"`
	Status     string    `db:"status_short" json:"status"`
}

// IsCompleted reports whether the fixture finished with a recorded score.
func (f *Fixture) IsCompleted() bool {
	if f.GoalsHome == nil || f.GoalsAway == nil {
		return false
	}
	for _, s := range CompletedStatuses {
		if f.Status == s {
			return true
		}
	}
	return false
}

// Outcome returns the 1X2 result label. Only valid for completed fixtures.
func (f *Fixture) Outcome() string {
	gh, ga := *f.GoalsHome, *f.GoalsAway
	switch {
	case gh > ga:
		return OutcomeHome
	case gh < ga:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}

// TotalGoals returns the combined score. Only valid for completed fixtures.
func (f *Fixture) TotalGoals() int {
	return *f.GoalsHome + *f.GoalsAway
}

// OutcomeOU25 returns the over/under 2.5 result label.
func (f *Fixture) OutcomeOU25() string {
	if f.TotalGoals() > 2 {
		return OutcomeOver
	}
	return OutcomeUnder
}

package features

import (
	"math"

	"github.com/yourusername/edge-finder/internal/models"
)

// Columns is the canonical feature ordering. Training matrices, persisted
// models and inference rows all use this order; changing it invalidates every
// stored model bundle.
var Columns = []string{
	"elo_home",
	"elo_away",
	"elo_diff",
	"home_form_pts",
	"home_goal_diff_5",
	"home_clean_sheet_rate",
	"home_btts_rate",
	"home_over25_rate",
	"away_form_pts",
	"away_goal_diff_5",
	"away_clean_sheet_rate",
	"away_btts_rate",
	"away_over25_rate",
	"home_rest_days",
	"away_rest_days",
	"home_matches_last_30d",
	"away_matches_last_30d",
	"home_avg_cards_5",
	"away_avg_cards_5",
	"home_avg_corners_5",
	"away_avg_corners_5",
	"h2h_home_wins",
	"h2h_draws",
	"h2h_away_wins",
	"h2h_avg_goals",
	"odds_home",
	"odds_draw",
	"odds_away",
	"implied_prob_home",
	"implied_prob_draw",
	"implied_prob_away",
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// ValuesByName returns the feature vector keyed by column name, for callers
// that carry their own column ordering (persisted model bundles record the
// order they were trained under).
func ValuesByName(v *models.FeatureVector) map[string]float64 {
	row := Ordered(v)
	out := make(map[string]float64, len(Columns))
	for i, name := range Columns {
		out[name] = row[i]
	}
	return out
}

// Ordered flattens a feature vector into Columns order. Missing values
// become NaN, which the model handles natively.
func Ordered(v *models.FeatureVector) []float64 {
	return []float64{
		v.EloHome,
		v.EloAway,
		v.EloDiff,
		v.HomeFormPts,
		v.HomeGoalDiff5,
		v.HomeCleanSheetRate,
		v.HomeBTTSRate,
		v.HomeOver25Rate,
		v.AwayFormPts,
		v.AwayGoalDiff5,
		v.AwayCleanSheetRate,
		v.AwayBTTSRate,
		v.AwayOver25Rate,
		deref(v.HomeRestDays),
		deref(v.AwayRestDays),
		v.HomeMatchesLast30D,
		v.AwayMatchesLast30D,
		deref(v.HomeAvgCards5),
		deref(v.AwayAvgCards5),
		deref(v.HomeAvgCorners5),
		deref(v.AwayAvgCorners5),
		v.H2HHomeWins,
		v.H2HDraws,
		v.H2HAwayWins,
		deref(v.H2HAvgGoals),
		deref(v.OddsHome),
		deref(v.OddsDraw),
		deref(v.OddsAway),
		deref(v.ImpliedProbHome),
		deref(v.ImpliedProbDraw),
		deref(v.ImpliedProbAway),
	}
}

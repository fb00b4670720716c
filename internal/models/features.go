package models

// FeatureVector is the fixed-schema feature record for one (fixture, as-of-date)
// pair. Pointer fields carry "missing ≠ zero" semantics: nil means the
// underlying signal was unavailable and must never be silently imputed here.
// The downstream model handles missing values natively.
type FeatureVector struct {
	// Elo ratings (league-scoped, as of the fixture date)
	EloHome float64 `json:"elo_home"`
	EloAway float64 `json:"elo_away"`
	EloDiff float64 `json:"elo_diff"`

	// Home form over the trailing window of completed league matches.
	// Neutral all-zero when no prior matches exist.
	HomeFormPts        float64 `json:"home_form_pts"`
	HomeGoalDiff5      float64 `json:"home_goal_diff_5"`
	HomeCleanSheetRate float64 `json:"home_clean_sheet_rate"`
	HomeBTTSRate       float64 `json:"home_btts_rate"`
	HomeOver25Rate     float64 `json:"home_over25_rate"`

	// Away form
	AwayFormPts        float64 `json:"away_form_pts"`
	AwayGoalDiff5      float64 `json:"away_goal_diff_5"`
	AwayCleanSheetRate float64 `json:"away_clean_sheet_rate"`
	AwayBTTSRate       float64 `json:"away_btts_rate"`
	AwayOver25Rate     float64 `json:"away_over25_rate"`

	// Fatigue / rest (all competitions). RestDays is nil for a team with no
	// prior recorded match.
	HomeRestDays       *float64 `json:"home_rest_days"`
	AwayRestDays       *float64 `json:"away_rest_days"`
	HomeMatchesLast30D float64  `json:"home_matches_last_30d"`
	AwayMatchesLast30D float64  `json:"away_matches_last_30d"`

	// Discipline. Corner averages are reserved fields: always nil until an
	// upstream source supplies corner counts.
	HomeAvgCards5   *float64 `json:"home_avg_cards_5"`
	AwayAvgCards5   *float64 `json:"away_avg_cards_5"`
	HomeAvgCorners5 *float64 `json:"home_avg_corners_5"`
	AwayAvgCorners5 *float64 `json:"away_avg_corners_5"`

	// Head-to-head from the upcoming home team's perspective.
	H2HHomeWins float64  `json:"h2h_home_wins"`
	H2HDraws    float64  `json:"h2h_draws"`
	H2HAwayWins float64  `json:"h2h_away_wins"`
	H2HAvgGoals *float64 `json:"h2h_avg_goals"`

	// Odds-derived. All nil when no 1X2 quote exists.
	OddsHome        *float64 `json:"odds_home"`
	OddsDraw        *float64 `json:"odds_draw"`
	OddsAway        *float64 `json:"odds_away"`
	ImpliedProbHome *float64 `json:"implied_prob_home"`
	ImpliedProbDraw *float64 `json:"implied_prob_draw"`
	ImpliedProbAway *float64 `json:"implied_prob_away"`
}

// FeatureRow pairs a computed feature vector with its fixture for storage in
// the feature cache.
type FeatureRow struct {
	FixtureID int64          `db:"fixture_id" json:"fixture_id"`
	LeagueID  int64          `db:"league_id" json:"league_id"`
	Vector    *FeatureVector `db:"feature_vector" json:"feature_vector"`
}

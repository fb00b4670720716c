package models

import (
	"github.com/shopspring/decimal"
)

// Market1X2 is the three-outcome win/draw/loss market identifier.
const Market1X2 = 1

// OddsQuote holds bookmaker decimal odds for the 1X2 market on one fixture.
// Prices are kept as decimals end to end and only converted to float64 at the
// math boundary.
type OddsQuote struct {
	FixtureID int64           `db:"fixture_id" json:"fixture_id"`
	MarketID  int             `db:"market_id" json:"market_id"`
	Home      decimal.Decimal `db:"odds_home" json:"odds_home"`
	Draw      decimal.Decimal `db:"odds_draw" json:"odds_draw"`
	Away      decimal.Decimal `db:"odds_away" json:"odds_away"`
}

// IsComplete reports whether all three prices are present and backable.
func (q *OddsQuote) IsComplete() bool {
	one := decimal.NewFromInt(1)
	return q.Home.GreaterThan(one) && q.Draw.GreaterThan(one) && q.Away.GreaterThan(one)
}

// Floats returns the three prices as float64 in home/draw/away order.
func (q *OddsQuote) Floats() (float64, float64, float64) {
	oh, _ := q.Home.Float64()
	od, _ := q.Draw.Float64()
	oa, _ := q.Away.Float64()
	return oh, od, oa
}

// Margin returns the bookmaker overround: the sum of the three raw implied
// probabilities, normally > 1.
func (q *OddsQuote) Margin() float64 {
	oh, od, oa := q.Floats()
	return 1.0/oh + 1.0/od + 1.0/oa
}

// ImpliedProbabilities returns margin-adjusted implied probabilities that sum
// to 1, in home/draw/away order.
func (q *OddsQuote) ImpliedProbabilities() (float64, float64, float64) {
	oh, od, oa := q.Floats()
	raw := 1.0/oh + 1.0/od + 1.0/oa
	return (1.0 / oh) / raw, (1.0 / od) / raw, (1.0 / oa) / raw
}

// FixtureWithOdds is a completed fixture joined with its best 1X2 quote, the
// unit of work for backtest loading.
type FixtureWithOdds struct {
	Fixture Fixture
	Odds    OddsQuote
}

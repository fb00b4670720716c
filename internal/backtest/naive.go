package backtest

import (
	"github.com/yourusername/edge-finder/internal/models"
)

// NaiveStakeFraction is the flat bankroll share the benchmark bettor stakes
// on every fixture.
const NaiveStakeFraction = 0.05

// NaiveBenchmark always backs the market favourite with a flat fraction of
// its own bankroll. Any strategy that cannot beat this is not finding edge;
// it is rediscovering the favourite-longshot bias.
type NaiveBenchmark struct {
	State *State
}

// NewNaiveBenchmark starts the benchmark at the given bankroll.
func NewNaiveBenchmark(initial float64) *NaiveBenchmark {
	return &NaiveBenchmark{State: NewState(initial)}
}

// Bet backs the shortest-priced outcome of one fixture and settles it
// against the actual result.
func (n *NaiveBenchmark) Bet(fo *models.FixtureWithOdds) {
	oh, od, oa := fo.Odds.Floats()
	outcome, odds := models.OutcomeHome, oh
	if od < odds {
		outcome, odds = models.OutcomeDraw, od
	}
	if oa < odds {
		outcome, odds = models.OutcomeAway, oa
	}

	stake := n.State.Bankroll * NaiveStakeFraction
	won := fo.Fixture.Outcome() == outcome
	pnl := -stake
	if won {
		pnl = stake * (odds - 1.0)
	}
	n.State.Settle(&Bet{
		FixtureID: fo.Fixture.ID,
		Date:      fo.Fixture.Date,
		Outcome:   outcome,
		Odds:      odds,
		Stake:     stake,
		PnL:       pnl,
		Won:       won,
	})
}

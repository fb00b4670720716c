package backtest

import "time"

// Bet is one simulated wager.
type Bet struct {
	FixtureID int64     `json:"fixture_id"`
	Date      time.Time `json:"date"`
	Outcome   string    `json:"outcome"`
	Odds      float64   `json:"odds"`
	ModelProb float64   `json:"model_prob"`
	Edge      float64   `json:"edge"`
	Stake     float64   `json:"stake"`
	PnL       float64   `json:"pnl"`
	Won       bool      `json:"won"`
}

// State tracks a bankroll through a simulation. Drawdown is measured
// peak-to-trough on the equity path and reported as a negative percentage.
type State struct {
	Bankroll    float64
	Peak        float64
	MaxDrawdown float64
	Bets        []*Bet
	Wins        int
}

// NewState starts a bankroll at the given amount.
func NewState(initial float64) *State {
	return &State{Bankroll: initial, Peak: initial}
}

// Settle applies one settled bet to the bankroll.
func (s *State) Settle(bet *Bet) {
	s.Bankroll += bet.PnL
	s.Bets = append(s.Bets, bet)
	if bet.Won {
		s.Wins++
	}

	if s.Bankroll > s.Peak {
		s.Peak = s.Bankroll
	}
	if s.Peak > 0 {
		drawdown := (s.Bankroll - s.Peak) / s.Peak * 100
		if drawdown < s.MaxDrawdown {
			s.MaxDrawdown = drawdown
		}
	}
}

// TotalStaked sums every stake placed.
func (s *State) TotalStaked() float64 {
	var total float64
	for _, b := range s.Bets {
		total += b.Stake
	}
	return total
}

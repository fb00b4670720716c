package backtest

import "time"

// Overfitting heuristics: a model ROI this far above both an absolute bar and
// the naive benchmark is more likely leakage than genius.
const (
	DefaultOverfitROIThreshold  = 25.0
	DefaultOverfitNaiveMultiple = 3.0
)

// PeriodResult is the outcome of one walk-forward window.
type PeriodResult struct {
	Period        Period  `json:"period"`
	Skipped       bool    `json:"skipped"`
	SkipReason    string  `json:"skip_reason,omitempty"`
	TrainFixtures int     `json:"train_fixtures"`
	TestFixtures  int     `json:"test_fixtures"`
	NotEvaluated  int     `json:"not_evaluated"`
	Bets          int     `json:"bets"`
	Wins          int     `json:"wins"`
	StartBankroll float64 `json:"start_bankroll"`
	EndBankroll   float64 `json:"end_bankroll"`
	PnL           float64 `json:"pnl"`
	Drawdown      float64 `json:"drawdown"`
	BrierScore    float64 `json:"brier_score"`
	LogLoss       float64 `json:"log_loss"`
}

// NaiveSummary is the benchmark bettor's aggregate result.
type NaiveSummary struct {
	FinalBankroll float64 `json:"final_bankroll"`
	PnL           float64 `json:"pnl"`
	ROI           float64 `json:"roi"`
	Bets          int     `json:"bets"`
	Wins          int     `json:"wins"`
}

// Summary is the aggregate result of one walk-forward run.
type Summary struct {
	LeagueIDs        []int64        `json:"league_ids"`
	StartDate        time.Time      `json:"start_date"`
	EndDate          time.Time      `json:"end_date"`
	Periods          []PeriodResult `json:"periods"`
	PeriodsSimulated int            `json:"periods_simulated"`
	PeriodsSkipped   int            `json:"periods_skipped"`
	TotalBets        int            `json:"total_bets"`
	NotEvaluated     int            `json:"not_evaluated"`
	Wins             int            `json:"wins"`
	WinRate          float64        `json:"win_rate"`
	StartingBankroll float64        `json:"starting_bankroll"`
	FinalBankroll    float64        `json:"final_bankroll"`
	TotalPnL         float64        `json:"total_pnl"`
	ROI              float64        `json:"roi"`
	WorstDrawdown    float64        `json:"worst_drawdown"`
	AvgBrierScore    float64        `json:"avg_brier_score"`
	AvgLogLoss       float64        `json:"avg_log_loss"`
	Naive            NaiveSummary   `json:"naive"`
	OverfitWarning   bool           `json:"overfit_warning"`
}

// finalize fills the aggregate fields from the period results and the two
// bankroll states.
func (s *Summary) finalize(model *State, naive *NaiveBenchmark, overfitROI, overfitMultiple float64) {
	s.FinalBankroll = model.Bankroll
	s.TotalPnL = model.Bankroll - s.StartingBankroll
	if s.StartingBankroll > 0 {
		s.ROI = s.TotalPnL / s.StartingBankroll * 100
	}
	s.TotalBets = len(model.Bets)
	s.Wins = model.Wins
	if s.TotalBets > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalBets)
	}

	var brierSum, logLossSum float64
	scored := 0
	for _, p := range s.Periods {
		if p.Skipped {
			s.PeriodsSkipped++
			continue
		}
		s.PeriodsSimulated++
		s.NotEvaluated += p.NotEvaluated
		if p.TestFixtures > 0 {
			brierSum += p.BrierScore
			logLossSum += p.LogLoss
			scored++
		}
		if p.Drawdown < s.WorstDrawdown {
			s.WorstDrawdown = p.Drawdown
		}
	}
	if scored > 0 {
		s.AvgBrierScore = brierSum / float64(scored)
		s.AvgLogLoss = logLossSum / float64(scored)
	}

	naivePnL := naive.State.Bankroll - s.StartingBankroll
	s.Naive = NaiveSummary{
		FinalBankroll: naive.State.Bankroll,
		PnL:           naivePnL,
		Bets:          len(naive.State.Bets),
		Wins:          naive.State.Wins,
	}
	if s.StartingBankroll > 0 {
		s.Naive.ROI = naivePnL / s.StartingBankroll * 100
	}

	s.OverfitWarning = s.ROI > overfitROI && s.ROI > overfitMultiple*s.Naive.ROI
}

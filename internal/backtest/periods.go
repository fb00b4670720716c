package backtest

import "time"

// Walk-forward window defaults: the first cutoff sits three steps past the
// start so the first model has a meaningful history to learn from.
const (
	DefaultStepMonths         = 3
	DefaultInitialCutoffSteps = 3
)

// Period is one walk-forward window: train on [Start, Cutoff), bet on
// [Cutoff, TestEnd).
type Period struct {
	Start   time.Time `json:"start"`
	Cutoff  time.Time `json:"cutoff"`
	TestEnd time.Time `json:"test_end"`
}

// Periods enumerates walk-forward windows from start until the test window
// passes end. Training always reaches back to the original start: the model
// accumulates history rather than sliding.
func Periods(start, end time.Time, stepMonths, initialCutoffSteps int) []Period {
	if stepMonths <= 0 {
		stepMonths = DefaultStepMonths
	}
	if initialCutoffSteps <= 0 {
		initialCutoffSteps = DefaultInitialCutoffSteps
	}

	var periods []Period
	cutoff := start.AddDate(0, stepMonths*initialCutoffSteps, 0)
	for cutoff.Before(end) {
		testEnd := cutoff.AddDate(0, stepMonths, 0)
		if testEnd.After(end) {
			testEnd = end
		}
		periods = append(periods, Period{Start: start, Cutoff: cutoff, TestEnd: testEnd})
		cutoff = cutoff.AddDate(0, stepMonths, 0)
	}
	return periods
}

// Package backtest simulates walk-forward betting on historical fixtures
// with capital-constrained Kelly staking.
package backtest

// Staking defaults.
const (
	DefaultEdgeThreshold = 0.05
	DefaultKellyFraction = 0.25
	DefaultKellyMaxStake = 0.05
)

// Edge is the model's probability advantage over the margin-adjusted market
// price: modelProb - (1/odds)/margin.
func Edge(modelProb, odds, margin float64) float64 {
	return modelProb - (1.0/odds)/margin
}

// KellyStake returns the bankroll fraction to stake. The full Kelly fraction
// (p*b - q)/b is scaled down by kellyFraction and capped at maxStake; a
// negative fraction means no bet and returns 0.
func KellyStake(modelProb, odds, kellyFraction, maxStake float64) float64 {
	b := odds - 1.0
	if b <= 0 {
		return 0
	}
	q := 1.0 - modelProb
	f := (modelProb*b - q) / b * kellyFraction
	if f < 0 {
		return 0
	}
	if f > maxStake {
		return maxStake
	}
	return f
}

// Package training fits, calibrates and persists prediction models on
// chronologically split historical fixtures.
package training

import (
	"fmt"

	"github.com/yourusername/edge-finder/internal/models"
)

// Class orderings are part of the persisted model contract: probability
// vectors are indexed by position in these slices.
var (
	Classes1X2  = []string{models.OutcomeAway, models.OutcomeDraw, models.OutcomeHome}
	ClassesOU25 = []string{models.OutcomeOver, models.OutcomeUnder}
)

// ClassesFor returns the class ordering for a target.
func ClassesFor(target string) ([]string, error) {
	switch target {
	case models.Target1X2:
		return Classes1X2, nil
	case models.TargetOU25:
		return ClassesOU25, nil
	}
	return nil, fmt.Errorf("unknown prediction target %q", target)
}

// Label returns the class index of a completed fixture for a target.
func Label(fixture *models.Fixture, target string) (int, error) {
	classes, err := ClassesFor(target)
	if err != nil {
		return 0, err
	}

	var outcome string
	switch target {
	case models.Target1X2:
		outcome = fixture.Outcome()
	case models.TargetOU25:
		outcome = fixture.OutcomeOU25()
	}
	for i, c := range classes {
		if c == outcome {
			return i, nil
		}
	}
	return 0, fmt.Errorf("outcome %q has no class for target %q", outcome, target)
}

// ClassWeights returns balanced per-class weights: n / (numClass * count).
// Classes absent from the data get weight 0; they cannot be learned anyway.
func ClassWeights(labels []int, numClass int) []float64 {
	counts := make([]int, numClass)
	for _, y := range labels {
		counts[y]++
	}
	weights := make([]float64, numClass)
	n := float64(len(labels))
	for c, count := range counts {
		if count > 0 {
			weights[c] = n / (float64(numClass) * float64(count))
		}
	}
	return weights
}

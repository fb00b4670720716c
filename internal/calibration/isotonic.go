// Package calibration implements isotonic regression calibration of model
// probabilities, plus the proper scoring rules used to evaluate it.
package calibration

import (
	"fmt"
	"math"
	"sort"
)

// Isotonic is a fitted monotone mapping from raw probability to calibrated
// probability. JSON-serializable alongside the model it calibrates.
type Isotonic struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// FitIsotonic fits an isotonic regression of targets on scores using the
// pool-adjacent-violators algorithm. targets are 0/1 indicators.
func FitIsotonic(scores, targets []float64) (*Isotonic, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("cannot fit isotonic regression on empty data")
	}
	if len(scores) != len(targets) {
		return nil, fmt.Errorf("score count %d does not match target count %d", len(scores), len(targets))
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	type block struct {
		sumY   float64
		weight float64
		minX   float64
		maxX   float64
	}
	blocks := make([]block, 0, len(order))
	for _, i := range order {
		blocks = append(blocks, block{sumY: targets[i], weight: 1, minX: scores[i], maxX: scores[i]})
		// Pool while the monotonicity constraint is violated.
		for len(blocks) > 1 {
			last := len(blocks) - 1
			if blocks[last-1].sumY/blocks[last-1].weight <= blocks[last].sumY/blocks[last].weight {
				break
			}
			blocks[last-1] = block{
				sumY:   blocks[last-1].sumY + blocks[last].sumY,
				weight: blocks[last-1].weight + blocks[last].weight,
				minX:   blocks[last-1].minX,
				maxX:   blocks[last].maxX,
			}
			blocks = blocks[:last]
		}
	}

	iso := &Isotonic{}
	for _, b := range blocks {
		mean := b.sumY / b.weight
		iso.X = append(iso.X, b.minX, b.maxX)
		iso.Y = append(iso.Y, mean, mean)
	}
	return iso, nil
}

// Transform maps a raw score through the fitted curve with linear
// interpolation between knots and clipping outside the fitted range.
func (iso *Isotonic) Transform(score float64) float64 {
	n := len(iso.X)
	if n == 0 {
		return score
	}
	if score <= iso.X[0] {
		return iso.Y[0]
	}
	if score >= iso.X[n-1] {
		return iso.Y[n-1]
	}

	idx := sort.SearchFloat64s(iso.X, score)
	x0, x1 := iso.X[idx-1], iso.X[idx]
	y0, y1 := iso.Y[idx-1], iso.Y[idx]
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(score-x0)/(x1-x0)
}

// Multiclass calibrates each class column independently and renormalises rows
// to sum to 1.
type Multiclass struct {
	PerClass []*Isotonic `json:"per_class"`
}

// FitMulticlass fits one isotonic curve per class on held-out predictions.
// probs is row-major [sample][class]; labels are class indices.
func FitMulticlass(probs [][]float64, labels []int, numClass int) (*Multiclass, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("cannot calibrate on empty data")
	}
	if len(probs) != len(labels) {
		return nil, fmt.Errorf("probability count %d does not match label count %d", len(probs), len(labels))
	}

	m := &Multiclass{PerClass: make([]*Isotonic, numClass)}
	scores := make([]float64, len(probs))
	targets := make([]float64, len(probs))
	for c := 0; c < numClass; c++ {
		for i := range probs {
			scores[i] = probs[i][c]
			if labels[i] == c {
				targets[i] = 1
			} else {
				targets[i] = 0
			}
		}
		iso, err := FitIsotonic(scores, targets)
		if err != nil {
			return nil, fmt.Errorf("failed to fit class %d: %w", c, err)
		}
		m.PerClass[c] = iso
	}
	return m, nil
}

// Transform calibrates one probability row. The per-class outputs are
// renormalised to sum to 1; if every calibrated value is 0 the raw row is
// returned unchanged.
func (m *Multiclass) Transform(probs []float64) []float64 {
	out := make([]float64, len(probs))
	var sum float64
	for c, p := range probs {
		out[c] = m.PerClass[c].Transform(p)
		sum += out[c]
	}
	if sum <= 0 {
		copy(out, probs)
		return out
	}
	for c := range out {
		out[c] /= sum
	}
	return out
}

// Binary calibrates the positive-class probability of a two-class model and
// records the Brier score improvement measured at fit time.
type Binary struct {
	Curve       *Isotonic `json:"curve"`
	BrierBefore float64   `json:"brier_before"`
	BrierAfter  float64   `json:"brier_after"`
}

// FitBinary fits an isotonic curve on held-out positive-class probabilities.
func FitBinary(positiveProbs []float64, labels []int) (*Binary, error) {
	targets := make([]float64, len(labels))
	for i, y := range labels {
		if y == 1 {
			targets[i] = 1
		}
	}
	iso, err := FitIsotonic(positiveProbs, targets)
	if err != nil {
		return nil, err
	}

	b := &Binary{Curve: iso}
	b.BrierBefore = brierBinary(positiveProbs, targets)
	calibrated := make([]float64, len(positiveProbs))
	for i, p := range positiveProbs {
		calibrated[i] = iso.Transform(p)
	}
	b.BrierAfter = brierBinary(calibrated, targets)
	return b, nil
}

// Transform calibrates a positive-class probability, clipped to [0, 1].
func (b *Binary) Transform(p float64) float64 {
	out := b.Curve.Transform(p)
	return math.Min(1, math.Max(0, out))
}

func brierBinary(probs, targets []float64) float64 {
	var sum float64
	for i := range probs {
		d := probs[i] - targets[i]
		sum += d * d
	}
	return sum / float64(len(probs))
}

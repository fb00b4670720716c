package calibration

import "math"

const probFloor = 1e-15

// LogLoss is the mean negative log likelihood of the true class.
// probs is row-major [sample][class].
func LogLoss(probs [][]float64, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	var sum float64
	for i := range probs {
		p := probs[i][labels[i]]
		if p < probFloor {
			p = probFloor
		}
		sum += -math.Log(p)
	}
	return sum / float64(len(probs))
}

// BrierScore is the mean squared distance between the probability row and the
// one-hot true label, summed over classes.
func BrierScore(probs [][]float64, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	var sum float64
	for i := range probs {
		for c, p := range probs[i] {
			target := 0.0
			if labels[i] == c {
				target = 1.0
			}
			d := p - target
			sum += d * d
		}
	}
	return sum / float64(len(probs))
}

// Accuracy is the share of rows whose argmax probability matches the label.
func Accuracy(probs [][]float64, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	correct := 0
	for i := range probs {
		best := 0
		for c := 1; c < len(probs[i]); c++ {
			if probs[i][c] > probs[i][best] {
				best = c
			}
		}
		if best == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

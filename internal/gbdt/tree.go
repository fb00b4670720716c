// Package gbdt implements gradient-boosted decision trees with native
// missing-value handling. Features arrive as float64 with NaN marking an
// absent value; every split learns which branch missing rows follow.
package gbdt

import (
	"math"
	"sort"
)

// Node is one node of a regression tree. Leaf nodes carry Value; internal
// nodes carry the split. MissingLeft records which branch rows with a NaN
// feature value take.
type Node struct {
	Feature     int     `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	MissingLeft bool    `json:"missing_left,omitempty"`
	Left        *Node   `json:"left,omitempty"`
	Right       *Node   `json:"right,omitempty"`
	Leaf        bool    `json:"leaf,omitempty"`
	Value       float64 `json:"value,omitempty"`
	Gain        float64 `json:"gain,omitempty"`
}

// treeParams are the regularised growth settings shared by every tree in a
// boosting run.
type treeParams struct {
	maxDepth       int
	minChildWeight float64
	lambda         float64
	gamma          float64
}

// leafValue is the Newton step for a leaf: -G / (H + lambda).
func leafValue(sumGrad, sumHess, lambda float64) float64 {
	return -sumGrad / (sumHess + lambda)
}

// scoreGain is the structure score improvement of a candidate split.
func scoreGain(gl, hl, gr, hr, lambda float64) float64 {
	total := gl + gr
	totalH := hl + hr
	return 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - total*total/(totalH+lambda))
}

type splitCandidate struct {
	feature     int
	threshold   float64
	missingLeft bool
	gain        float64
}

// buildTree grows one regression tree over the given rows by exact greedy
// search. grads and hess are indexed by row position in the full matrix;
// rows holds the indices in scope for this node.
func buildTree(x [][]float64, grads, hess []float64, rows []int, depth int, p treeParams) *Node {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += grads[i]
		sumH += hess[i]
	}

	leaf := &Node{Leaf: true, Value: leafValue(sumG, sumH, p.lambda)}
	if depth >= p.maxDepth || len(rows) < 2 {
		return leaf
	}

	best := findBestSplit(x, grads, hess, rows, sumG, sumH, p)
	if best == nil || best.gain <= p.gamma {
		return leaf
	}

	left, right := partition(x, rows, best)
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}

	return &Node{
		Feature:     best.feature,
		Threshold:   best.threshold,
		MissingLeft: best.missingLeft,
		Gain:        best.gain,
		Left:        buildTree(x, grads, hess, left, depth+1, p),
		Right:       buildTree(x, grads, hess, right, depth+1, p),
	}
}

// findBestSplit scans every feature for the highest-gain threshold. Rows with
// a missing value are tried on both sides and the better direction is kept.
func findBestSplit(x [][]float64, grads, hess []float64, rows []int, sumG, sumH float64, p treeParams) *splitCandidate {
	if len(rows) == 0 {
		return nil
	}
	numFeatures := len(x[rows[0]])

	var best *splitCandidate
	present := make([]int, 0, len(rows))

	for f := 0; f < numFeatures; f++ {
		present = present[:0]
		var missG, missH float64
		for _, i := range rows {
			if math.IsNaN(x[i][f]) {
				missG += grads[i]
				missH += hess[i]
			} else {
				present = append(present, i)
			}
		}
		if len(present) < 2 {
			continue
		}

		sort.Slice(present, func(a, b int) bool { return x[present[a]][f] < x[present[b]][f] })

		var gl, hl float64
		for k := 0; k < len(present)-1; k++ {
			i := present[k]
			gl += grads[i]
			hl += hess[i]
			if x[present[k+1]][f] == x[i][f] {
				continue
			}

			gr := sumG - missG - gl
			hr := sumH - missH - hl
			threshold := (x[i][f] + x[present[k+1]][f]) / 2

			// Missing rows left.
			if hl+missH >= p.minChildWeight && hr >= p.minChildWeight {
				gain := scoreGain(gl+missG, hl+missH, gr, hr, p.lambda)
				if best == nil || gain > best.gain {
					best = &splitCandidate{feature: f, threshold: threshold, missingLeft: true, gain: gain}
				}
			}
			// Missing rows right.
			if hl >= p.minChildWeight && hr+missH >= p.minChildWeight {
				gain := scoreGain(gl, hl, gr+missG, hr+missH, p.lambda)
				if best == nil || gain > best.gain {
					best = &splitCandidate{feature: f, threshold: threshold, missingLeft: false, gain: gain}
				}
			}
		}
	}
	return best
}

func partition(x [][]float64, rows []int, s *splitCandidate) (left, right []int) {
	for _, i := range rows {
		v := x[i][s.feature]
		if math.IsNaN(v) {
			if s.missingLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
			continue
		}
		if v < s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// Predict returns the leaf value reached by one feature row.
func (n *Node) Predict(row []float64) float64 {
	node := n
	for !node.Leaf {
		v := row[node.Feature]
		if math.IsNaN(v) {
			if node.MissingLeft {
				node = node.Left
			} else {
				node = node.Right
			}
			continue
		}
		if v < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// expectedValue is the mean leaf value of a subtree, the reference point for
// path contributions. Branches are weighted equally; good enough for ranking
// feature effects, which is all the explain surface promises.
func (n *Node) expectedValue() float64 {
	if n.Leaf {
		return n.Value
	}
	return (n.Left.expectedValue() + n.Right.expectedValue()) / 2
}

// Contribute walks the row through the tree and attributes each step's change
// in expected value to the split feature (saabas attribution). out must have
// one slot per feature; the bias slot is returned.
func (n *Node) Contribute(row []float64, out []float64) float64 {
	node := n
	current := node.expectedValue()
	bias := current
	for !node.Leaf {
		var next *Node
		v := row[node.Feature]
		if math.IsNaN(v) {
			if node.MissingLeft {
				next = node.Left
			} else {
				next = node.Right
			}
		} else if v < node.Threshold {
			next = node.Left
		} else {
			next = node.Right
		}

		nextValue := next.expectedValue()
		out[node.Feature] += nextValue - current
		current = nextValue
		node = next
	}
	return bias
}

// accumulateGain sums split gains per feature into the importance vector.
func (n *Node) accumulateGain(importance []float64) {
	if n.Leaf {
		return
	}
	importance[n.Feature] += n.Gain
	n.Left.accumulateGain(importance)
	n.Right.accumulateGain(importance)
}

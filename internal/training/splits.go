package training

// Split fractions for chronological partitioning.
const (
	DefaultTestFraction       = 0.20
	DefaultValidationFraction = 0.15
)

// Split holds index bounds into a chronologically ordered sample set:
// [0, TrainEnd) train, [TrainEnd, ValEnd) validation, [ValEnd, n) test.
type Split struct {
	TrainEnd int
	ValEnd   int
	N        int
}

// ChronologicalSplit partitions n time-ordered samples. The most recent
// testFraction goes to test; of the remainder, the most recent
// validationFraction goes to validation. Shuffling would leak future
// information into training, so order is everything here.
func ChronologicalSplit(n int, testFraction, validationFraction float64) Split {
	testStart := n - int(float64(n)*testFraction)
	valStart := testStart - int(float64(testStart)*validationFraction)
	return Split{TrainEnd: valStart, ValEnd: testStart, N: n}
}

// TrainSize returns the number of training samples.
func (s Split) TrainSize() int { return s.TrainEnd }

// ValSize returns the number of validation samples.
func (s Split) ValSize() int { return s.ValEnd - s.TrainEnd }

// TestSize returns the number of test samples.
func (s Split) TestSize() int { return s.N - s.ValEnd }

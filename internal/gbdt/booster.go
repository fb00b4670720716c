package gbdt

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Config holds the boosting hyperparameters. Zero values fall back to
// sensible defaults via Normalize.
type Config struct {
	NumRounds           int     `json:"num_rounds"`
	LearningRate        float64 `json:"learning_rate"`
	MaxDepth            int     `json:"max_depth"`
	MinChildWeight      float64 `json:"min_child_weight"`
	Lambda              float64 `json:"lambda"`
	Gamma               float64 `json:"gamma"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds"`
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.NumRounds <= 0 {
		c.NumRounds = 300
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.05
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 4
	}
	if c.MinChildWeight <= 0 {
		c.MinChildWeight = 1.0
	}
	if c.Lambda <= 0 {
		c.Lambda = 1.0
	}
	if c.EarlyStoppingRounds <= 0 {
		c.EarlyStoppingRounds = 30
	}
	return c
}

// Booster is a trained gradient-boosted model. For binary problems NumClass
// is 2 and one tree per round predicts the positive-class logit; multiclass
// problems grow one tree per class per round under a softmax objective.
// The struct is JSON-serializable for disk persistence.
type Booster struct {
	Config       Config    `json:"config"`
	NumClass     int       `json:"num_class"`
	NumFeatures  int       `json:"num_features"`
	BaseScore    []float64 `json:"base_score"`
	Trees        [][]*Node `json:"trees"`
	BestRound    int       `json:"best_round"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

// Dataset pairs a feature matrix with integer class labels and per-row
// weights. Missing feature values are NaN.
type Dataset struct {
	X       [][]float64
	Labels  []int
	Weights []float64
}

func (d *Dataset) validate(numClass int) error {
	if len(d.X) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(d.Labels) != len(d.X) {
		return fmt.Errorf("label count %d does not match row count %d", len(d.Labels), len(d.X))
	}
	if d.Weights != nil && len(d.Weights) != len(d.X) {
		return fmt.Errorf("weight count %d does not match row count %d", len(d.Weights), len(d.X))
	}
	for i, y := range d.Labels {
		if y < 0 || y >= numClass {
			return fmt.Errorf("label %d at row %d outside [0, %d)", y, i, numClass)
		}
	}
	return nil
}

// Train fits a booster on train, using valid (optional) for early stopping on
// weighted log loss.
func Train(cfg Config, numClass int, train, valid *Dataset, logger *logrus.Logger) (*Booster, error) {
	cfg = cfg.Normalize()
	if numClass < 2 {
		return nil, fmt.Errorf("numClass must be >= 2, got %d", numClass)
	}
	if err := train.validate(numClass); err != nil {
		return nil, fmt.Errorf("invalid training data: %w", err)
	}
	if valid != nil {
		if err := valid.validate(numClass); err != nil {
			return nil, fmt.Errorf("invalid validation data: %w", err)
		}
	}

	n := len(train.X)
	weights := train.Weights
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1.0
		}
	}

	// One score column per class for multiclass, a single logit for binary.
	scoreCols := numClass
	if numClass == 2 {
		scoreCols = 1
	}

	b := &Booster{
		Config:      cfg,
		NumClass:    numClass,
		NumFeatures: len(train.X[0]),
		BaseScore:   make([]float64, scoreCols),
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, scoreCols)
	}
	var validScores [][]float64
	if valid != nil {
		validScores = make([][]float64, len(valid.X))
		for i := range validScores {
			validScores[i] = make([]float64, scoreCols)
		}
	}

	grads := make([]float64, n)
	hess := make([]float64, n)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	params := treeParams{
		maxDepth:       cfg.MaxDepth,
		minChildWeight: cfg.MinChildWeight,
		lambda:         cfg.Lambda,
		gamma:          cfg.Gamma,
	}

	bestLoss := math.Inf(1)
	bestRound := 0
	sinceBest := 0

	for round := 0; round < cfg.NumRounds; round++ {
		roundTrees := make([]*Node, scoreCols)
		for col := 0; col < scoreCols; col++ {
			fillGradients(scores, train.Labels, weights, numClass, col, grads, hess)
			tree := buildTree(train.X, grads, hess, rows, 0, params)
			roundTrees[col] = tree
			for i := 0; i < n; i++ {
				scores[i][col] += cfg.LearningRate * tree.Predict(train.X[i])
			}
			if valid != nil {
				for i := range valid.X {
					validScores[i][col] += cfg.LearningRate * tree.Predict(valid.X[i])
				}
			}
		}
		b.Trees = append(b.Trees, roundTrees)
		b.BestRound = round + 1

		if valid == nil {
			continue
		}
		loss := datasetLogLoss(validScores, valid.Labels, valid.Weights, numClass)
		if loss < bestLoss-1e-9 {
			bestLoss = loss
			bestRound = round + 1
			sinceBest = 0
		} else {
			sinceBest++
			if sinceBest >= cfg.EarlyStoppingRounds {
				b.Trees = b.Trees[:bestRound]
				b.BestRound = bestRound
				if logger != nil {
					logger.WithFields(logrus.Fields{
						"stopped_at": round + 1,
						"best_round": bestRound,
						"valid_loss": bestLoss,
					}).Info("Early stopping triggered")
				}
				return b, nil
			}
		}
	}

	if valid != nil && bestRound > 0 && bestRound < len(b.Trees) {
		b.Trees = b.Trees[:bestRound]
		b.BestRound = bestRound
	}
	return b, nil
}

// fillGradients computes first and second order gradients of the logistic
// (binary) or softmax (multiclass) objective for one score column.
func fillGradients(scores [][]float64, labels []int, weights []float64, numClass, col int, grads, hess []float64) {
	if numClass == 2 {
		for i := range scores {
			p := sigmoid(scores[i][0])
			y := float64(labels[i])
			grads[i] = weights[i] * (p - y)
			h := p * (1 - p)
			if h < 1e-16 {
				h = 1e-16
			}
			hess[i] = weights[i] * h
		}
		return
	}
	for i := range scores {
		p := softmaxAt(scores[i], col)
		y := 0.0
		if labels[i] == col {
			y = 1.0
		}
		grads[i] = weights[i] * (p - y)
		h := p * (1 - p)
		if h < 1e-16 {
			h = 1e-16
		}
		hess[i] = weights[i] * h
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func softmaxAt(scores []float64, col int) float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s - maxScore)
	}
	return math.Exp(scores[col]-maxScore) / sum
}

func datasetLogLoss(scores [][]float64, labels []int, weights []float64, numClass int) float64 {
	var loss, wsum float64
	for i := range scores {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		var p float64
		if numClass == 2 {
			p = sigmoid(scores[i][0])
			if labels[i] == 0 {
				p = 1 - p
			}
		} else {
			p = softmaxAt(scores[i], labels[i])
		}
		if p < 1e-15 {
			p = 1e-15
		}
		loss += -w * math.Log(p)
		wsum += w
	}
	return loss / wsum
}

// rawScores sums tree outputs for one row.
func (b *Booster) rawScores(row []float64) []float64 {
	cols := b.NumClass
	if b.NumClass == 2 {
		cols = 1
	}
	scores := make([]float64, cols)
	copy(scores, b.BaseScore)
	for _, roundTrees := range b.Trees {
		for col, tree := range roundTrees {
			scores[col] += b.Config.LearningRate * tree.Predict(row)
		}
	}
	return scores
}

// PredictProba returns class probabilities for one row, in class-index order.
func (b *Booster) PredictProba(row []float64) []float64 {
	if len(row) != b.NumFeatures {
		panic(fmt.Sprintf("gbdt: row has %d features, model expects %d", len(row), b.NumFeatures))
	}
	scores := b.rawScores(row)
	if b.NumClass == 2 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	probs := make([]float64, b.NumClass)
	for c := range probs {
		probs[c] = softmaxAt(scores, c)
	}
	return probs
}

// FeatureImportance returns per-feature total split gain, normalised to sum
// to 1 when any split exists.
func (b *Booster) FeatureImportance() []float64 {
	importance := make([]float64, b.NumFeatures)
	for _, roundTrees := range b.Trees {
		for _, tree := range roundTrees {
			tree.accumulateGain(importance)
		}
	}
	var total float64
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}

// Contributions returns per-feature additive contributions to the raw score
// of the given class column for one row, plus the bias term.
func (b *Booster) Contributions(row []float64, class int) ([]float64, float64) {
	col := class
	if b.NumClass == 2 {
		col = 0
	}
	out := make([]float64, b.NumFeatures)
	var bias float64
	for _, roundTrees := range b.Trees {
		bias += b.Config.LearningRate * roundTrees[col].Contribute(row, out)
	}
	// Contribute accumulates unscaled deltas; apply the learning rate once.
	for i := range out {
		out[i] *= b.Config.LearningRate
	}
	return out, bias
}

// Marshal serialises the booster to JSON.
func (b *Booster) Marshal() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Unmarshal restores a booster from JSON.
func Unmarshal(data []byte) (*Booster, error) {
	b := &Booster{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if b.NumClass < 2 || b.NumFeatures == 0 {
		return nil, fmt.Errorf("decoded model is incomplete")
	}
	return b, nil
}

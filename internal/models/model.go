package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Prediction targets.
const (
	Target1X2  = "1x2"
	TargetOU25 = "ou25"
)

// ModelMeta is the sidecar metadata written next to every persisted model
// bundle and mirrored into the ml_models table.
type ModelMeta struct {
	Version             int       `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	Target              string    `json:"target"`
	LogLossTrain        float64   `json:"log_loss_train"`
	LogLossTest         float64   `json:"log_loss_test"`
	BrierScoreBefore    float64   `json:"brier_score_before"`
	BrierScore          float64   `json:"brier_score"`
	Accuracy            float64   `json:"accuracy"`
	TrainSamples        int       `json:"train_samples"`
	ValSamples          int       `json:"val_samples"`
	TestSamples         int       `json:"test_samples"`
	FeatureCount        int       `json:"feature_count"`
	LeaguesIncluded     []int64   `json:"leagues_included"`
	TrainingWindowStart string    `json:"training_window_start"`
	TrainingWindowEnd   string    `json:"training_window_end"`
	ModelFile           string    `json:"model_file"`
}

// Model is the ml_models database row for one trained bundle version.
type Model struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Target    string          `db:"target" json:"target" validate:"required,oneof=1x2 ou25"`
	Version   int             `db:"version" json:"version" validate:"required,gt=0"`
	Path      string          `db:"path" json:"path" validate:"required"`
	Metrics   json.RawMessage `db:"metrics" json:"metrics"`
	TrainedAt time.Time       `db:"trained_at" json:"trained_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// BacktestResult is the persisted aggregate summary of one walk-forward run.
type BacktestResult struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	LeagueIDs []int64         `db:"league_ids" json:"league_ids"`
	StartDate time.Time       `db:"start_date" json:"start_date"`
	EndDate   time.Time       `db:"end_date" json:"end_date"`
	Summary   json.RawMessage `db:"summary" json:"summary"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

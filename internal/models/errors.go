package models

import "errors"

// Failure taxonomy. Per-fixture and per-period errors are absorbed and logged
// by callers; run-level errors propagate.
var (
	// ErrNotFound indicates a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientData indicates a training or test set below the minimum
	// sample floor; the unit of work is skipped, not the run
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrFeatureBuild indicates per-fixture feature computation failed; the
	// fixture is excluded from the dataset
	ErrFeatureBuild = errors.New("feature build failed")

	// ErrMissingOdds indicates no usable 1X2 quote for a fixture
	ErrMissingOdds = errors.New("no usable 1x2 odds quote")

	// ErrModelNotFound indicates inference was requested for a target with no
	// trained bundle
	ErrModelNotFound = errors.New("no trained model found")

	// ErrNoData indicates a backtest was requested over an empty fixture set
	ErrNoData = errors.New("no fixtures with odds found for the given parameters")
)

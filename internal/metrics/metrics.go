// Package metrics provides the centralized Prometheus registry for the
// prediction service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edge_finder",
		Name:      "predictions_total",
		Help:      "Total number of predictions served",
	}, []string{"target"})
	FeatureBuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edge_finder",
		Name:      "feature_builds_total",
		Help:      "Total number of feature vectors computed",
	})
	FeatureBuildFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edge_finder",
		Name:      "feature_build_failures_total",
		Help:      "Total number of fixtures excluded because feature construction failed",
	})
	TrainingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edge_finder",
		Name:      "training_runs_total",
		Help:      "Total number of training runs",
	}, []string{"target", "outcome"})
	BacktestRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edge_finder",
		Name:      "backtest_runs_total",
		Help:      "Total number of walk-forward backtest runs",
	})
)

// Gauge metrics
var (
	ModelVersion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "edge_finder",
		Name:      "model_version",
		Help:      "Latest trained model version per target",
	}, []string{"target"})
	ModelLogLoss = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "edge_finder",
		Name:      "model_log_loss",
		Help:      "Held-out log loss of the latest model per target",
	}, []string{"target"})
	BacktestFinalBankroll = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "edge_finder",
		Name:      "backtest_final_bankroll",
		Help:      "Final bankroll of the most recent backtest run",
	})
	BacktestROI = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "edge_finder",
		Name:      "backtest_roi_percent",
		Help:      "ROI percentage of the most recent backtest run",
	})
)

// Histogram metrics
var (
	TrainingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "edge_finder",
		Name:      "training_duration_seconds",
		Help:      "Duration of training runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "edge_finder",
		Name:      "backtest_duration_seconds",
		Help:      "Duration of walk-forward backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	FeatureRefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "edge_finder",
		Name:      "feature_refresh_duration_seconds",
		Help:      "Duration of per-league feature refreshes in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(FeatureBuildsTotal)
		registry.MustRegister(FeatureBuildFailuresTotal)
		registry.MustRegister(TrainingRunsTotal)
		registry.MustRegister(BacktestRunsTotal)

		registry.MustRegister(ModelVersion)
		registry.MustRegister(ModelLogLoss)
		registry.MustRegister(BacktestFinalBankroll)
		registry.MustRegister(BacktestROI)

		registry.MustRegister(TrainingDuration)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(FeatureRefreshDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordPrediction records one served prediction.
func RecordPrediction(target string) {
	PredictionsTotal.WithLabelValues(target).Inc()
}

// RecordTrainingRun records one training run and its duration.
func RecordTrainingRun(target string, durationSeconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	TrainingRunsTotal.WithLabelValues(target, outcome).Inc()
	TrainingDuration.Observe(durationSeconds)
}

// RecordModelVersion publishes the latest version and test log loss.
func RecordModelVersion(target string, version int, logLoss float64) {
	ModelVersion.WithLabelValues(target).Set(float64(version))
	ModelLogLoss.WithLabelValues(target).Set(logLoss)
}

// RecordBacktestRun records one backtest run with its headline numbers.
func RecordBacktestRun(durationSeconds, finalBankroll, roi float64) {
	BacktestRunsTotal.Inc()
	BacktestDuration.Observe(durationSeconds)
	BacktestFinalBankroll.Set(finalBankroll)
	BacktestROI.Set(roi)
}

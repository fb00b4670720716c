// Package config provides configuration management for the Edge Finder application.
package config

import (
	"fmt"
)

// Config represents the complete application configuration. It is constructed
// once at startup and passed by reference to each component; no core code
// reads the environment directly.
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	ModelStore ModelStoreConfig `mapstructure:"model_store" validate:"required"`
	Rating     RatingConfig     `mapstructure:"rating" validate:"required"`
	Features   FeaturesConfig   `mapstructure:"features" validate:"required"`
	Training   TrainingConfig   `mapstructure:"training" validate:"required"`
	Betting    BettingConfig    `mapstructure:"betting" validate:"required"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// ModelStoreConfig locates persisted model bundles on disk
type ModelStoreConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// RatingConfig holds the Elo rating engine tunables, shared by all leagues
type RatingConfig struct {
	KFactor       float64 `mapstructure:"k_factor" validate:"required,gt=0"`
	HomeAdvantage float64 `mapstructure:"home_advantage" validate:"gte=0"`
	Baseline      float64 `mapstructure:"baseline" validate:"required,gt=0"`
}

// FeaturesConfig holds the rolling-window sizes for feature construction
type FeaturesConfig struct {
	FormWindow        int `mapstructure:"form_window" validate:"required,gt=0"`
	H2HWindow         int `mapstructure:"h2h_window" validate:"required,gt=0"`
	FatigueWindowDays int `mapstructure:"fatigue_window_days" validate:"required,gt=0"`
}

// TrainingConfig holds model training parameters
type TrainingConfig struct {
	MinTrainSamples    int     `mapstructure:"min_train_samples" validate:"required,gt=0"`
	TestFraction       float64 `mapstructure:"test_fraction" validate:"required,gt=0,lt=1"`
	ValidationFraction float64 `mapstructure:"validation_fraction" validate:"required,gt=0,lt=1"`
	MaxFixtures        int     `mapstructure:"max_fixtures" validate:"required,gt=0"`
}

// BettingConfig holds edge and staking thresholds
type BettingConfig struct {
	// EdgeThresholdShow gates value recommendations on display surfaces;
	// EdgeThresholdBacktest is the stricter floor for placing simulated bets.
	EdgeThresholdShow     float64 `mapstructure:"edge_threshold_show" validate:"gte=0,lte=1"`
	EdgeThresholdBacktest float64 `mapstructure:"edge_threshold_backtest" validate:"gte=0,lte=1"`
	KellyFraction         float64 `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
	KellyMaxStake         float64 `mapstructure:"kelly_max_stake" validate:"required,gt=0,lte=1"`
}

// BacktestConfig represents walk-forward backtesting configuration
type BacktestConfig struct {
	InitialBankroll   float64 `mapstructure:"initial_bankroll" validate:"required,gt=0"`
	WalkForwardMonths int     `mapstructure:"walk_forward_months" validate:"required,gt=0"`
	// InitialCutoffSteps front-loads the first training window: the first
	// cutoff is start + InitialCutoffSteps x WalkForwardMonths.
	InitialCutoffSteps   int     `mapstructure:"initial_cutoff_steps" validate:"required,gt=0"`
	OverfitROIThreshold  float64 `mapstructure:"overfit_roi_threshold" validate:"gte=0"`
	OverfitNaiveMultiple float64 `mapstructure:"overfit_naive_multiple" validate:"gte=0"`
	OutputPath           string  `mapstructure:"output_path"`
}

// SchedulerConfig represents scheduled retraining configuration
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	RetrainCron        string `mapstructure:"retrain_cron"`
	FeatureRefreshCron string `mapstructure:"feature_refresh_cron"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Package config provides configuration management for the Edge Finder application.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := newViper()
	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional
// fields. A missing config file is not an error: defaults plus environment
// variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EDGE_FINDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults mirrors the tunables of the original service so a bare
// deployment behaves identically without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "edge-finder")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("model_store.dir", "./saved_models")

	v.SetDefault("rating.k_factor", 20.0)
	v.SetDefault("rating.home_advantage", 100.0)
	v.SetDefault("rating.baseline", 1500.0)

	v.SetDefault("features.form_window", 5)
	v.SetDefault("features.h2h_window", 5)
	v.SetDefault("features.fatigue_window_days", 30)

	v.SetDefault("training.min_train_samples", 500)
	v.SetDefault("training.test_fraction", 0.20)
	v.SetDefault("training.validation_fraction", 0.15)
	v.SetDefault("training.max_fixtures", 10000)

	v.SetDefault("betting.edge_threshold_show", 0.03)
	v.SetDefault("betting.edge_threshold_backtest", 0.05)
	v.SetDefault("betting.kelly_fraction", 0.25)
	v.SetDefault("betting.kelly_max_stake", 0.05)

	v.SetDefault("backtest.initial_bankroll", 1000.0)
	v.SetDefault("backtest.walk_forward_months", 3)
	v.SetDefault("backtest.initial_cutoff_steps", 3)
	v.SetDefault("backtest.overfit_roi_threshold", 25.0)
	v.SetDefault("backtest.overfit_naive_multiple", 3.0)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.retrain_cron", "0 4 * * *")
	v.SetDefault("scheduler.feature_refresh_cron", "0 3 * * *")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

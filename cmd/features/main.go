package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/edge-finder/internal/config"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/features"
	applog "github.com/yourusername/edge-finder/internal/logger"
	"github.com/yourusername/edge-finder/internal/metrics"
	"github.com/yourusername/edge-finder/internal/rating"
	"github.com/yourusername/edge-finder/internal/repository"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	leagueIDs  []int64
	force      bool

	logger *logrus.Logger
	cfg    *config.Config
	db     *database.DB
	repos  *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().Int64SliceVarP(&leagueIDs, "league", "l", nil, "League IDs to refresh (repeatable, empty = all leagues)")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "Rebuild every vector instead of only missing ones")
}

var rootCmd = &cobra.Command{
	Use:     "features",
	Short:   "Refresh the precomputed feature store",
	Long:    `Computes feature vectors for completed fixtures and caches them in the ml_feature_store table. By default only fixtures without a cached vector are built; --force drops and rebuilds each league.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupDependencies()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer db.Close()
		return runRefresh(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	return config.Validate(cfg)
}

func setupDependencies() error {
	logger = applog.NewLogger(cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	metrics.InitRegistry()
	return nil
}

func runRefresh(ctx context.Context) error {
	store := buildStore()

	targets := leagueIDs
	if len(targets) == 0 {
		var err error
		targets, err = repos.League.AllIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list leagues: %w", err)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no leagues found")
	}

	results := make([]*features.RefreshResult, 0, len(targets))
	for _, leagueID := range targets {
		start := time.Now()
		result, err := store.Refresh(ctx, leagueID, force)
		if err != nil {
			return fmt.Errorf("refresh failed for league %d: %w", leagueID, err)
		}
		metrics.FeatureRefreshDuration.Observe(time.Since(start).Seconds())

		logger.WithFields(logrus.Fields{
			"league_id": leagueID,
			"built":     result.Built,
			"cached":    result.Cached,
			"failed":    result.Failed,
		}).Info("League feature refresh finished")
		results = append(results, result)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func buildStore() *features.Store {
	ratings := rating.NewEngine(repos.Fixture, logger,
		rating.WithKFactor(cfg.Rating.KFactor),
		rating.WithHomeAdvantage(cfg.Rating.HomeAdvantage),
		rating.WithBaseline(cfg.Rating.Baseline),
	)
	builder := features.NewBuilder(repos.Fixture, repos.Odds, repos.Event, ratings, logger,
		features.WithFormWindow(cfg.Features.FormWindow),
		features.WithH2HWindow(cfg.Features.H2HWindow),
		features.WithFatigueWindowDays(cfg.Features.FatigueWindowDays),
	)
	return features.NewStore(builder, repos.FeatureStore, repos.Fixture, logger)
}

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
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/rating"
	"github.com/yourusername/edge-finder/internal/repository"
	"github.com/yourusername/edge-finder/internal/training"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile  string
	target      string
	leagueIDs   []int64
	maxFixtures int

	logger *logrus.Logger
	cfg    *config.Config
	db     *database.DB
	repos  *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&target, "target", "t", "all", "Prediction target to train: 1x2, ou25 or all")
	rootCmd.Flags().Int64SliceVarP(&leagueIDs, "league", "l", nil, "League IDs to train on (repeatable, empty = all leagues)")
	rootCmd.Flags().IntVar(&maxFixtures, "max-fixtures", 0, "Cap on recent completed fixtures used for training (0 = config value)")
}

var rootCmd = &cobra.Command{
	Use:     "train",
	Short:   "Train a new model version from the fixture history",
	Long:    `Builds feature vectors for recent completed fixtures, fits a gradient-boosted model with isotonic calibration, and persists the versioned bundle to the model store.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupDependencies()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer db.Close()
		return runTraining(cmd.Context())
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

func targets() ([]string, error) {
	switch target {
	case "all":
		return []string{models.Target1X2, models.TargetOU25}, nil
	case models.Target1X2, models.TargetOU25:
		return []string{target}, nil
	default:
		return nil, fmt.Errorf("unknown target %q, expected 1x2, ou25 or all", target)
	}
}

func runTraining(ctx context.Context) error {
	selected, err := targets()
	if err != nil {
		return err
	}

	trainer, err := buildTrainer()
	if err != nil {
		return err
	}

	results := make([]*training.Result, 0, len(selected))
	for _, tgt := range selected {
		start := time.Now()
		logger.WithFields(logrus.Fields{
			"target":  tgt,
			"leagues": leagueIDs,
		}).Info("Starting training run")

		limit := maxFixtures
		if limit <= 0 {
			limit = cfg.Training.MaxFixtures
		}
		result, err := trainer.Train(ctx, training.Request{
			Target:      tgt,
			LeagueIDs:   leagueIDs,
			MaxFixtures: limit,
		})
		metrics.RecordTrainingRun(tgt, time.Since(start).Seconds(), err)
		if err != nil {
			return fmt.Errorf("training %s failed: %w", tgt, err)
		}

		metrics.RecordModelVersion(tgt, result.Meta.Version, result.Meta.LogLossTest)
		logger.WithFields(logrus.Fields{
			"target":   tgt,
			"version":  result.Meta.Version,
			"log_loss": result.Meta.LogLossTest,
			"path":     result.Path,
		}).Info("Training run finished")
		results = append(results, result)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func buildTrainer() (*training.Trainer, error) {
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
	featureStore := features.NewStore(builder, repos.FeatureStore, repos.Fixture, logger)

	bundles, err := training.NewDiskStore(cfg.ModelStore.Dir)
	if err != nil {
		return nil, err
	}

	return training.NewTrainer(featureStore, repos.Fixture, repos.Model, bundles, logger, training.TrainerConfig{
		MinTrainSamples:    cfg.Training.MinTrainSamples,
		TestFraction:       cfg.Training.TestFraction,
		ValidationFraction: cfg.Training.ValidationFraction,
	}), nil
}

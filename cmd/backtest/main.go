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

	"github.com/yourusername/edge-finder/internal/backtest"
	"github.com/yourusername/edge-finder/internal/config"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/features"
	applog "github.com/yourusername/edge-finder/internal/logger"
	"github.com/yourusername/edge-finder/internal/metrics"
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
	configFile string
	leagueIDs  []int64
	startDate  string
	endDate    string
	outputPath string

	logger *logrus.Logger
	cfg    *config.Config
	db     *database.DB
	repos  *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().Int64SliceVarP(&leagueIDs, "league", "l", nil, "League IDs to simulate (repeatable, empty = all leagues)")
	rootCmd.Flags().StringVar(&startDate, "start-date", "", "Simulation start date (YYYY-MM-DD, required)")
	rootCmd.Flags().StringVar(&endDate, "end-date", "", "Simulation end date (YYYY-MM-DD, default today)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the summary JSON to this file instead of stdout")
	rootCmd.MarkFlagRequired("start-date")
}

var rootCmd = &cobra.Command{
	Use:     "backtest",
	Short:   "Run a walk-forward betting simulation over historical fixtures",
	Long:    `Replays the fixture history in rolling windows: retrains the model before each window, bets fixtures with a positive edge at fractional Kelly stakes, and reports bankroll, ROI, drawdown and a naive favourite-backing benchmark.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupDependencies()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer db.Close()
		return runBacktest(cmd.Context())
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

func parseDateRange() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end := time.Now().UTC()
	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

func runBacktest(ctx context.Context) error {
	start, end, err := parseDateRange()
	if err != nil {
		return err
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"leagues":    leagueIDs,
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
		"bankroll":   cfg.Backtest.InitialBankroll,
	}).Info("Starting walk-forward backtest")

	runStart := time.Now()
	summary, err := engine.Run(ctx, backtest.Request{
		LeagueIDs: leagueIDs,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	metrics.RecordBacktestRun(time.Since(runStart).Seconds(), summary.FinalBankroll, summary.ROI)

	logger.WithFields(logrus.Fields{
		"periods":        summary.PeriodsSimulated,
		"final_bankroll": summary.FinalBankroll,
		"roi":            summary.ROI,
		"overfit":        summary.OverfitWarning,
	}).Info("Backtest finished")

	return writeSummary(summary)
}

func writeSummary(summary *backtest.Summary) error {
	out := os.Stdout
	path := outputPath
	if path == "" {
		path = cfg.Backtest.OutputPath
	}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func buildEngine() (*backtest.Engine, error) {
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
	trainer := training.NewTrainer(featureStore, repos.Fixture, repos.Model, bundles, logger, training.TrainerConfig{
		MinTrainSamples:    cfg.Training.MinTrainSamples,
		TestFraction:       cfg.Training.TestFraction,
		ValidationFraction: cfg.Training.ValidationFraction,
	})

	return backtest.NewEngine(trainer, featureStore, repos.Fixture, repos.BacktestResult, logger, backtest.Config{
		InitialBankroll:      cfg.Backtest.InitialBankroll,
		StepMonths:           cfg.Backtest.WalkForwardMonths,
		InitialCutoffSteps:   cfg.Backtest.InitialCutoffSteps,
		MinTrainSamples:      cfg.Training.MinTrainSamples,
		EdgeThreshold:        cfg.Betting.EdgeThresholdBacktest,
		KellyFraction:        cfg.Betting.KellyFraction,
		KellyMaxStake:        cfg.Betting.KellyMaxStake,
		OverfitROIThreshold:  cfg.Backtest.OverfitROIThreshold,
		OverfitNaiveMultiple: cfg.Backtest.OverfitNaiveMultiple,
	}), nil
}

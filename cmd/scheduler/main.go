package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/edge-finder/internal/config"
	"github.com/yourusername/edge-finder/internal/database"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/health"
	"github.com/yourusername/edge-finder/internal/jobs"
	applog "github.com/yourusername/edge-finder/internal/logger"
	"github.com/yourusername/edge-finder/internal/metrics"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/predictor"
	"github.com/yourusername/edge-finder/internal/rating"
	"github.com/yourusername/edge-finder/internal/repository"
	"github.com/yourusername/edge-finder/internal/scheduler"
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

	logger *logrus.Logger
	cfg    *config.Config
	db     *database.DB
	repos  *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
}

var rootCmd = &cobra.Command{
	Use:     "scheduler",
	Short:   "Run the recurring feature refresh and retraining jobs",
	Long:    `Long-running process that refreshes the feature store and retrains both prediction targets on cron schedules, serving health and metrics endpoints while it runs.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return setupDependencies()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer db.Close()
		return run()
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

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		return err
	}
	trainer := training.NewTrainer(featureStore, repos.Fixture, repos.Model, bundles, logger, training.TrainerConfig{
		MinTrainSamples:    cfg.Training.MinTrainSamples,
		TestFraction:       cfg.Training.TestFraction,
		ValidationFraction: cfg.Training.ValidationFraction,
	})
	pred := predictor.New(bundles, featureStore, logger,
		predictor.WithEdgeThresholdShow(cfg.Betting.EdgeThresholdShow),
	)

	runner := jobs.NewRunner(logger)
	sched := scheduler.New(trainer, featureStore, pred, repos.League, runner, logger)
	if err := sched.ScheduleFeatureRefresh(cfg.Scheduler.FeatureRefreshCron); err != nil {
		return err
	}
	if err := sched.ScheduleRetrain(cfg.Scheduler.RetrainCron); err != nil {
		return err
	}

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name + "-scheduler",
		Version:     Version,
		Logger:      logger,
		DB:          db,
		Models:      bundles,
		Targets:     []string{models.Target1X2, models.TargetOU25},
	})
	if err := healthServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer()
	}

	if err := sched.Start(); err != nil {
		return err
	}
	healthServer.SetReady(true)
	logger.WithFields(logrus.Fields{
		"retrain_cron": cfg.Scheduler.RetrainCron,
		"refresh_cron": cfg.Scheduler.FeatureRefreshCron,
	}).Info("Scheduler running, waiting for shutdown signal")

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	healthServer.SetReady(false)
	sched.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

func startMetricsServer() *http.Server {
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Metrics.Port).Info("Metrics server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server error")
		}
	}()
	return server
}

// Package scheduler runs the recurring maintenance jobs: nightly feature
// refreshes and periodic model retraining.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-finder/internal/features"
	"github.com/yourusername/edge-finder/internal/jobs"
	"github.com/yourusername/edge-finder/internal/models"
	"github.com/yourusername/edge-finder/internal/predictor"
	"github.com/yourusername/edge-finder/internal/repository"
	"github.com/yourusername/edge-finder/internal/training"
)

const jobTimeout = 4 * time.Hour

// Scheduler manages the cron-driven retrain and refresh jobs.
type Scheduler struct {
	cron      *cron.Cron
	trainer   *training.Trainer
	features  *features.Store
	predictor *predictor.Predictor
	leagues   repository.LeagueRepository
	runner    *jobs.Runner
	logger    *logrus.Logger

	mu        sync.RWMutex
	isRunning bool
	entryIDs  []cron.EntryID
}

// New creates a scheduler over the given services.
func New(
	trainer *training.Trainer,
	featureStore *features.Store,
	pred *predictor.Predictor,
	leagues repository.LeagueRepository,
	runner *jobs.Runner,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		trainer:   trainer,
		features:  featureStore,
		predictor: pred,
		leagues:   leagues,
		runner:    runner,
		logger:    logger,
	}
}

// ScheduleFeatureRefresh registers a recurring feature cache refresh across
// every known league.
func (s *Scheduler) ScheduleFeatureRefresh(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		s.runner.Submit(context.Background(), "scheduled-feature-refresh", s.refreshAllLeagues)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule feature refresh: %w", err)
	}
	s.entryIDs = append(s.entryIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled feature refresh")
	return nil
}

// ScheduleRetrain registers recurring retraining of both targets. The
// predictor cache is invalidated after a successful run so new versions are
// served immediately.
func (s *Scheduler) ScheduleRetrain(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		s.runner.Submit(context.Background(), "scheduled-retrain", s.retrainAll)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retrain: %w", err)
	}
	s.entryIDs = append(s.entryIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled model retraining")
	return nil
}

func (s *Scheduler) refreshAllLeagues(ctx context.Context, job *jobs.Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	leagueIDs, err := s.leagues.AllIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list leagues: %w", err)
	}

	for i, leagueID := range leagueIDs {
		if _, err := s.features.Refresh(ctx, leagueID, false); err != nil {
			s.logger.WithField("league_id", leagueID).WithError(err).Error("Scheduled feature refresh failed for league")
		}
		job.SetProgress(float64(i+1) / float64(len(leagueIDs)))
	}
	return nil
}

func (s *Scheduler) retrainAll(ctx context.Context, job *jobs.Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	targets := []string{models.Target1X2, models.TargetOU25}
	for i, target := range targets {
		result, err := s.trainer.Train(ctx, training.Request{Target: target})
		if err != nil {
			return fmt.Errorf("failed to retrain %s: %w", target, err)
		}
		s.logger.WithFields(logrus.Fields{
			"target":  target,
			"version": result.Meta.Version,
		}).Info("Scheduled retrain produced new model version")
		job.SetProgress(float64(i+1) / float64(len(targets)))
	}

	s.predictor.Invalidate()
	return nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.entryIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.entryIDs)).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.runner.Wait()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

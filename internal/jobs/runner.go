// Package jobs runs long-lived background tasks (training runs, feature
// refreshes, backtests) with status tracking and cancellation.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Job is one tracked background task. Progress is a free-form fraction in
// [0, 1] maintained by the task itself.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	Result     any       `json:"result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	mu     sync.Mutex
	cancel context.CancelFunc
}

// SetProgress updates the job's completion fraction, clamped to [0, 1].
func (j *Job) SetProgress(p float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	j.Progress = p
}

// SetResult attaches the task's output, visible once the job finishes.
func (j *Job) SetResult(v any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = v
}

// Snapshot returns a copy safe to serialise while the job is running.
func (j *Job) Snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Job{
		ID:         j.ID,
		Name:       j.Name,
		Status:     j.Status,
		Progress:   j.Progress,
		Error:      j.Error,
		Result:     j.Result,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// Task is the work a job performs. It must honour ctx cancellation.
type Task func(ctx context.Context, job *Job) error

// Runner tracks and executes jobs. One goroutine per job; the runner itself
// never blocks on task completion.
type Runner struct {
	logger *logrus.Logger

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	wg   sync.WaitGroup
}

// NewRunner creates an empty job runner.
func NewRunner(logger *logrus.Logger) *Runner {
	return &Runner{
		logger: logger,
		jobs:   make(map[uuid.UUID]*Job),
	}
}

// Submit queues and immediately starts a job. The returned job can be polled
// via Get.
func (r *Runner) Submit(ctx context.Context, name string, task Task) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:        uuid.New(),
		Name:      name,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		cancel:    cancel,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(jobCtx, job, task)
	}()
	return job
}

func (r *Runner) run(ctx context.Context, job *Job, task Task) {
	job.mu.Lock()
	job.Status = StatusRunning
	job.StartedAt = time.Now().UTC()
	job.mu.Unlock()

	err := task(ctx, job)

	job.mu.Lock()
	defer job.mu.Unlock()
	job.FinishedAt = time.Now().UTC()
	switch {
	case err == nil:
		job.Status = StatusFinished
		job.Progress = 1
	case ctx.Err() != nil:
		job.Status = StatusCanceled
		job.Error = ctx.Err().Error()
	default:
		job.Status = StatusFailed
		job.Error = err.Error()
	}

	r.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"name":   job.Name,
		"status": job.Status,
	}).Info("Job finished")
}

// Get returns a snapshot of one job.
func (r *Runner) Get(id uuid.UUID) (Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s not found", id)
	}
	return job.Snapshot(), nil
}

// Cancel requests cancellation of a running job.
func (r *Runner) Cancel(id uuid.UUID) error {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.cancel()
	return nil
}

// List returns snapshots of all jobs, newest first.
func (r *Runner) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Wait blocks until every submitted job has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

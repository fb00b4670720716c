package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner() *Runner {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRunner(logger)
}

func TestSubmitRunsToCompletion(t *testing.T) {
	r := testRunner()

	job := r.Submit(context.Background(), "train", func(ctx context.Context, j *Job) error {
		j.SetProgress(0.5)
		j.SetResult("v3")
		return nil
	})
	r.Wait()

	snap, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, snap.Status)
	assert.InDelta(t, 1.0, snap.Progress, 1e-9)
	assert.Equal(t, "v3", snap.Result)
	assert.False(t, snap.FinishedAt.IsZero())
}

func TestFailedJobKeepsError(t *testing.T) {
	r := testRunner()

	job := r.Submit(context.Background(), "backtest", func(ctx context.Context, j *Job) error {
		return errors.New("no fixtures with odds")
	})
	r.Wait()

	snap, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "no fixtures")
}

func TestCancelStopsJob(t *testing.T) {
	r := testRunner()
	started := make(chan struct{})

	job := r.Submit(context.Background(), "refresh", func(ctx context.Context, j *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	require.NoError(t, r.Cancel(job.ID))
	r.Wait()

	snap, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, snap.Status)
}

func TestListNewestFirst(t *testing.T) {
	r := testRunner()

	r.Submit(context.Background(), "first", func(context.Context, *Job) error { return nil })
	time.Sleep(5 * time.Millisecond)
	r.Submit(context.Background(), "second", func(context.Context, *Job) error { return nil })
	r.Wait()

	jobs := r.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "second", jobs[0].Name)
}

func TestGetUnknownJob(t *testing.T) {
	r := testRunner()
	_, err := r.Get([16]byte{1})
	assert.Error(t, err)
}

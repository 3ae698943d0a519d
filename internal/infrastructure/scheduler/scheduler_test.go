package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_DoesNotOverlapRuns(t *testing.T) {
	s := New(Config{TickInterval: 2 * time.Millisecond})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobBusy)

	close(job.block)
	require.NoError(t, s.Stop())
}

func TestScheduler_Register(t *testing.T) {
	s := New(Config{})

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "a"}, Every(time.Second)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, Every(time.Second)), ErrJobAlreadyExists)

	assert.ErrorIs(t, s.SetEnabled("missing", false), ErrJobNotFound)
	require.NoError(t, s.SetEnabled("a", false))
	assert.False(t, s.ListJobs()[0].Enabled)
}

func TestScheduler_RunNowRecordsResult(t *testing.T) {
	s := New(Config{})
	failing := &countingJob{name: "b", err: errors.New("store down")}
	ok := &countingJob{name: "a"}
	require.NoError(t, s.Register(failing, Every(time.Hour)))
	require.NoError(t, s.Register(ok, Every(time.Hour)))

	_, err := s.RunNow(context.Background(), "b")
	assert.EqualError(t, err, "store down")

	res, err := s.RunNow(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, res.Success())

	_, err = s.RunNow(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)
	assert.Equal(t, int64(1), infos[1].FailCount)
	require.NotNil(t, infos[1].LastResult)
	assert.False(t, infos[1].LastResult.Success())
}

func TestIntervalSchedule_NonPositiveNeverFires(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Minute), Every(time.Minute).Next(now))
	assert.True(t, Every(0).Next(now).After(now.AddDate(1000, 0, 0)))
}

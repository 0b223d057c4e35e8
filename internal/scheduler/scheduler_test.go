package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/pkg/logger"
)

type stubJob struct {
	name string
	err  error
	runs atomic.Int32
}

func (j *stubJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *stubJob) Name() string { return j.name }

type panickingJob struct{}

func (panickingJob) Run() error   { panic("boom") }
func (panickingJob) Name() string { return "panicking" }

func testScheduler(t *testing.T, bus *events.Bus) *Scheduler {
	t.Helper()
	return New(bus, logger.New(logger.Config{Level: "error"}))
}

func TestSchedulerAddJob(t *testing.T) {
	s := testScheduler(t, nil)

	require.NoError(t, s.AddJob("0 0 3 * * *", &stubJob{name: "nightly"}))
	require.NoError(t, s.AddJob("@every 1h", &stubJob{name: "hourly"}))

	assert.Equal(t, []string{"nightly", "hourly"}, s.JobNames())
}

func TestSchedulerAddJobRejectsBadSpec(t *testing.T) {
	s := testScheduler(t, nil)

	err := s.AddJob("every sometimes", &stubJob{name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, s.JobNames())
}

func TestSchedulerStartStop(t *testing.T) {
	s := testScheduler(t, nil)
	require.NoError(t, s.AddJob("0 0 3 * * *", &stubJob{name: "nightly"}))

	assert.False(t, s.Running())
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())
}

func TestRunNowExecutesJob(t *testing.T) {
	s := testScheduler(t, nil)

	job := &stubJob{name: "adhoc"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())

	failing := &stubJob{name: "failing", err: errors.New("sync failed")}
	assert.ErrorContains(t, s.RunNow(failing), "sync failed")
}

func TestRunJobEmitsErrorEvent(t *testing.T) {
	bus := events.NewBus(logger.New(logger.Config{Level: "error"}))

	var got *events.Event
	bus.Subscribe(events.ErrorOccurred, func(e *events.Event) {
		got = e
	})

	s := testScheduler(t, bus)
	s.runJob(&stubJob{name: "failing", err: errors.New("sync failed")})

	require.NotNil(t, got)
	assert.Equal(t, "scheduler", got.Source)
	assert.Equal(t, "failing", got.Data["job"])
	assert.Equal(t, "sync failed", got.Data["error"])
}

func TestRunJobRecoversFromPanic(t *testing.T) {
	bus := events.NewBus(logger.New(logger.Config{Level: "error"}))

	var got *events.Event
	bus.Subscribe(events.ErrorOccurred, func(e *events.Event) {
		got = e
	})

	s := testScheduler(t, bus)
	assert.NotPanics(t, func() { s.runJob(panickingJob{}) })

	require.NotNil(t, got)
	assert.Equal(t, "panicking", got.Data["job"])
	assert.Contains(t, got.Data["error"], "panic in job panicking")
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // attempts that fail before the first success
	calls    int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) (Outcome, error) {
	n := atomic.AddInt32(&j.calls, 1)
	if n <= j.failures {
		return Outcome{}, errors.New("transient")
	}
	return Outcome{Loaded: int(n)}, nil
}

func newTestScheduler() *Scheduler {
	return New(logger.Nop(), WithRetry(2, time.Millisecond), WithJobTimeout(time.Second))
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 */15 * * * *"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}))

	err := s.AddJob(&countingJob{name: "a", schedule: "@hourly"})
	assert.Error(t, err)

	err = s.AddJob(&countingJob{name: "c", schedule: "not a schedule"})
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRunJob_Retries(t *testing.T) {
	tests := []struct {
		name     string
		failures int32
		success  bool
		attempts int
	}{
		{"first attempt", 0, true, 1},
		{"recovers on retry", 2, true, 3},
		{"exhausts retries", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &countingJob{name: "reload", schedule: "@hourly", failures: tt.failures}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJob("reload")
			require.NoError(t, err)
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, tt.attempts, result.Attempts)
			if tt.success {
				assert.Equal(t, tt.attempts, result.Outcome.Loaded)
			} else {
				assert.Equal(t, "transient", result.Error)
				assert.Zero(t, result.Outcome)
			}

			history, err := s.GetJobHistory("reload")
			require.NoError(t, err)
			assert.Len(t, history, 1)
		})
	}
}

func TestRunJob_NotFound(t *testing.T) {
	s := newTestScheduler()

	_, err := s.RunJob("missing")
	assert.Error(t, err)

	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "reload", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("reload"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("reload"))

	// re-adding after removal is allowed
	require.NoError(t, s.AddJob(&countingJob{name: "reload", schedule: "@hourly"}))
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "flaky", schedule: "@hourly", failures: 3}))

	_, err := s.RunJob("flaky") // fails 3 times
	require.NoError(t, err)
	_, err = s.RunJob("flaky") // succeeds
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastRun)
	require.NotNil(t, stats.LastSuccess)
	require.NotNil(t, stats.LastFailure)
	assert.Equal(t, *stats.LastRun, *stats.LastSuccess)
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	require.NotNil(t, stats.LastOutcome)
	assert.Equal(t, 4, stats.LastOutcome.Loaded)
	assert.Equal(t, "transient", stats.LastError)
}

func TestGetJobStats_ConsecutiveFailures(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, time.Millisecond), WithJobTimeout(time.Second))
	require.NoError(t, s.AddJob(&countingJob{name: "reload", schedule: "@hourly", failures: 3}))

	for i := 0; i < 3; i++ {
		_, err := s.RunJob("reload")
		require.NoError(t, err)
	}
	stats := s.GetJobStats()["reload"]
	assert.Equal(t, 3, stats.ConsecutiveFailures)
	assert.Nil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastOutcome)

	_, err := s.RunJob("reload")
	require.NoError(t, err)
	stats = s.GetJobStats()["reload"]
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, 4, stats.TotalRuns)
}

func TestRemoveJob_KeepsHistory(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "reload", schedule: "@hourly"}))
	_, err := s.RunJob("reload")
	require.NoError(t, err)

	require.NoError(t, s.RemoveJob("reload"))
	require.NoError(t, s.AddJob(&countingJob{name: "reload", schedule: "@hourly"}))

	history, err := s.GetJobHistory("reload")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &jobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.add(JobResult{Success: i%2 == 0, Attempts: i})
	}

	results := h.snapshot()
	require.Len(t, results, maxHistory)
	assert.Equal(t, 10, results[0].Attempts, "oldest results dropped first")

	var st JobStats
	h.fill(&st)
	assert.Equal(t, maxHistory, st.TotalRuns)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-9)

	var empty JobStats
	(&jobHistory{}).fill(&empty)
	assert.Zero(t, empty.SuccessRate)
	assert.Nil(t, empty.LastRun)
}

package scheduler

import (
	"context"
	"time"
)

// Job is a periodic task over the dashboard data: rereading the source of
// record, refreshing the hub tables or purging closed review batches.
// ⭐ SSOT: the job interface is defined only here
type Job interface {
	Name() string

	// Schedule returns the cron expression, seconds first
	// Examples: "0 */15 * * * *" (every 15 minutes), "@hourly"
	Schedule() string

	// Run performs one attempt and reports what it changed
	Run(ctx context.Context) (Outcome, error)
}

// Outcome counts what one successful run changed
type Outcome struct {
	Loaded  int `json:"loaded"`  // records or hub rows held after the run
	Skipped int `json:"skipped"` // invalid source rows left out
	Purged  int `json:"purged"`  // review batches removed
}

// JobResult is one run, including its retries
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Attempts  int           `json:"attempts"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory is the number of results kept per job
const maxHistory = 50

// jobHistory keeps the latest results of one job, oldest first
type jobHistory struct {
	results []JobResult
}

func (h *jobHistory) add(result JobResult) {
	h.results = append(h.results, result)
	if len(h.results) > maxHistory {
		h.results = append([]JobResult(nil), h.results[len(h.results)-maxHistory:]...)
	}
}

func (h *jobHistory) snapshot() []JobResult {
	return append([]JobResult(nil), h.results...)
}

// fill derives the run counters of st from the kept results
func (h *jobHistory) fill(st *JobStats) {
	st.TotalRuns = len(h.results)

	for _, r := range h.results {
		started, outcome := r.StartTime, r.Outcome
		st.LastRun = &started
		if r.Success {
			st.SuccessCount++
			st.ConsecutiveFailures = 0
			st.LastSuccess = &started
			st.LastOutcome = &outcome
		} else {
			st.FailureCount++
			st.ConsecutiveFailures++
			st.LastFailure = &started
			st.LastError = r.Error
		}
	}

	if st.TotalRuns > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(st.TotalRuns)
	}
}

package jobs

import (
	"context"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/scheduler"
	"github.com/wonny/marketviews/internal/store"
	"github.com/wonny/marketviews/pkg/logger"
)

// ViewsLoader rereads the source of record
type ViewsLoader interface {
	Load(ctx context.Context) (*store.LoadResult, error)
}

// ViewsReloadJob picks up rows written to the source by other tools
type ViewsReloadJob struct {
	store    ViewsLoader
	schedule string
	logger   *logger.Logger
}

// NewViewsReloadJob creates a new views reload job
func NewViewsReloadJob(st ViewsLoader, schedule string, log *logger.Logger) *ViewsReloadJob {
	return &ViewsReloadJob{
		store:    st,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *ViewsReloadJob) Name() string {
	return "views_reload"
}

// Schedule returns the cron schedule
func (j *ViewsReloadJob) Schedule() string {
	return j.schedule
}

// Run reloads the store; Skipped counts source rows, not field errors
func (j *ViewsReloadJob) Run(ctx context.Context) (scheduler.Outcome, error) {
	result, err := j.store.Load(ctx)
	if err != nil {
		return scheduler.Outcome{}, err
	}

	out := scheduler.Outcome{
		Loaded:  result.Loaded,
		Skipped: skippedRows(result.Skipped),
	}
	if out.Skipped > 0 {
		j.logger.WithFields(map[string]interface{}{
			"loaded":  out.Loaded,
			"skipped": out.Skipped,
		}).Warn("Views reloaded with invalid rows")
	}

	return out, nil
}

func skippedRows(errs []contracts.FieldError) int {
	rows := make(map[int]bool, len(errs))
	for _, fe := range errs {
		rows[fe.Row] = true
	}
	return len(rows)
}

// HubReloader rereads the KPI and signal tables
type HubReloader interface {
	Reload() error
	KPIs() []contracts.KPI
	Risks() []contracts.Signal
	Opportunities() []contracts.Signal
}

// HubReloadJob refreshes the macro hub tables
type HubReloadJob struct {
	hub      HubReloader
	schedule string
}

// NewHubReloadJob creates a new hub reload job
func NewHubReloadJob(h HubReloader, schedule string) *HubReloadJob {
	return &HubReloadJob{hub: h, schedule: schedule}
}

// Name returns the job name
func (j *HubReloadJob) Name() string {
	return "hub_reload"
}

// Schedule returns the cron schedule
func (j *HubReloadJob) Schedule() string {
	return j.schedule
}

// Run reloads the hub; Loaded counts KPI and signal rows
func (j *HubReloadJob) Run(ctx context.Context) (scheduler.Outcome, error) {
	if err := j.hub.Reload(); err != nil {
		return scheduler.Outcome{}, err
	}
	return scheduler.Outcome{
		Loaded: len(j.hub.KPIs()) + len(j.hub.Risks()) + len(j.hub.Opportunities()),
	}, nil
}

// ReviewPurger drops closed review batches
type ReviewPurger interface {
	Purge(cutoff time.Time) int
}

// ReviewPurgeJob removes approved and rejected batches past retention
type ReviewPurgeJob struct {
	queue     ReviewPurger
	retention time.Duration
	logger    *logger.Logger
}

// NewReviewPurgeJob creates a new review purge job
func NewReviewPurgeJob(q ReviewPurger, retention time.Duration, log *logger.Logger) *ReviewPurgeJob {
	return &ReviewPurgeJob{
		queue:     q,
		retention: retention,
		logger:    log,
	}
}

// Name returns the job name
func (j *ReviewPurgeJob) Name() string {
	return "review_purge"
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *ReviewPurgeJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run purges closed batches
func (j *ReviewPurgeJob) Run(ctx context.Context) (scheduler.Outcome, error) {
	n := j.queue.Purge(time.Now().Add(-j.retention))
	if n > 0 {
		j.logger.WithField("removed", n).Info("Review batches purged")
	}
	return scheduler.Outcome{Purged: n}, nil
}

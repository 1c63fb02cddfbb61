package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketviews/internal/scheduler"
	"github.com/wonny/marketviews/internal/scheduler/jobs"
)

// reviewRetention is how long closed review batches are kept
const reviewRetention = 7 * 24 * time.Hour

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Reload scheduler",
	Long: `Starts the scheduler or manages its jobs.

Jobs:
  views_reload - rereads the source of record ($RELOAD_SCHEDULE)
  hub_reload   - rereads the KPI and signal tables ($HUB_RELOAD_SCHEDULE)
  review_purge - drops closed review batches (daily)

Subcommands:
  start   - start the scheduler
  list    - list registered jobs
  run     - run one job now

Example:
  go run ./cmd/painel scheduler start
  go run ./cmd/painel scheduler run views_reload`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers the reload jobs of a
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	for _, job := range []scheduler.Job{
		jobs.NewViewsReloadJob(a.store, a.cfg.Schedule.ViewsReload, a.log),
		jobs.NewHubReloadJob(a.hub, a.cfg.Schedule.HubReload),
		jobs.NewReviewPurgeJob(a.queue, reviewRetention, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context(), bootstrapOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	out := cmd.OutOrStdout()
	PrintSuccess(out, "Scheduler started")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Fprintf(out, "  - %s\n", jobName)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := quietBootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	rows := make([][]string, 0, len(stats))
	for _, jobName := range sched.GetAllJobs() {
		st := stats[jobName]
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{jobName, st.Schedule, next})
	}
	PrintTable(cmd.OutOrStdout(), []string{"Job", "Schedule", "Next run"}, rows)

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, err := quietBootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	out := cmd.OutOrStdout()
	if !result.Success {
		PrintError(out, fmt.Sprintf("%s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", result.JobName)
	}

	PrintSuccess(out, fmt.Sprintf("%s completed in %s", result.JobName, result.Duration.Round(time.Millisecond)))
	PrintKeyValue(out, "Loaded", strconv.Itoa(result.Outcome.Loaded), 8)
	PrintKeyValue(out, "Skipped", strconv.Itoa(result.Outcome.Skipped), 8)
	PrintKeyValue(out, "Purged", strconv.Itoa(result.Outcome.Purged), 8)
	return nil
}

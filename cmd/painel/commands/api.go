package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketviews/internal/api"
	"github.com/wonny/marketviews/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server and the reload scheduler.

Endpoints:
  GET  /health                        - Health check
  GET  /api/filters                   - Filter values
  GET  /api/records                   - Records (filters: asset_class, manager, subclass)
  POST /api/records                   - Append a batch (JSON or CSV)
  POST /api/records/validate          - Validate a batch
  GET  /api/consensus                 - Consensus table
  GET  /api/heatmap                   - Latest-view matrix (layout=subclass|manager)
  GET  /api/trajectory                - Subclass history (subclass, manager)
  GET  /api/managers/{manager}/views  - Current views of a manager
  GET  /api/export                    - CSV export
  POST /api/extractions               - Extract candidates from a report
  GET  /api/reviews                   - Review queue
  GET  /api/hub/kpis                  - Macro KPIs
  GET  /api/hub/signals               - Risks and opportunities
  GET  /metrics                       - Prometheus metrics

Example:
  go run ./cmd/painel api
  go run ./cmd/painel api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	apiNoScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default $PORT)")
	apiCmd.Flags().BoolVar(&apiNoScheduler, "no-scheduler", false, "do not run the reload jobs")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Wire components
	a, err := bootstrap(cmd.Context(), bootstrapOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 2. Create handlers
	var extractor handlers.Extractor
	if a.extractor != nil {
		extractor = a.extractor
	} else {
		a.log.Warn("GEMINI_API_KEY not set, extraction disabled")
	}

	routes := api.Handlers{
		Views:   handlers.NewViewsHandler(a.store, a.dashboard, a.validator, a.log),
		Reviews: handlers.NewReviewHandler(extractor, a.queue, a.log),
		Hub:     handlers.NewHubHandler(a.hub),
	}
	if a.db != nil {
		routes.Database = a.db
	}
	router := api.NewRouter(routes, a.metrics, a.log)

	// 3. Reload scheduler
	if !apiNoScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// 4. Start server with graceful shutdown
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Server running on http://localhost:%s", a.cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-quit:
	}

	a.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}

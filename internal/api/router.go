package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marketviews/internal/api/handlers"
	"github.com/wonny/marketviews/pkg/database"
	"github.com/wonny/marketviews/pkg/logger"
	"github.com/wonny/marketviews/pkg/metrics"
)

// DatabaseHealth reports the state of the postgres views table
type DatabaseHealth interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Handlers groups the route handlers; Reviews, Hub and Database may be nil
type Handlers struct {
	Views    *handlers.ViewsHandler
	Reviews  *handlers.ReviewHandler
	Hub      *handlers.HubHandler
	Database DatabaseHealth
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are registered only in this function
func NewRouter(h Handlers, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.Views, h.Database)).Methods("GET")

	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Views and projections
	api.HandleFunc("/filters", h.Views.GetFilters).Methods("GET")
	api.HandleFunc("/records", h.Views.GetRecords).Methods("GET")
	api.HandleFunc("/records", h.Views.PostRecords).Methods("POST")
	api.HandleFunc("/records/validate", h.Views.ValidateRecords).Methods("POST")
	api.HandleFunc("/consensus", h.Views.GetConsensus).Methods("GET")
	api.HandleFunc("/heatmap", h.Views.GetHeatmap).Methods("GET")
	api.HandleFunc("/trajectory", h.Views.GetTrajectory).Methods("GET")
	api.HandleFunc("/managers/{manager}/views", h.Views.GetManagerViews).Methods("GET")
	api.HandleFunc("/export", h.Views.Export).Methods("GET")
	api.HandleFunc("/reload", h.Views.Reload).Methods("POST")

	// Extraction and review
	if h.Reviews != nil {
		api.HandleFunc("/extractions", h.Reviews.Extract).Methods("POST")
		api.HandleFunc("/reviews", h.Reviews.ListReviews).Methods("GET")
		api.HandleFunc("/reviews", h.Reviews.Submit).Methods("POST")
		api.HandleFunc("/reviews/{id}", h.Reviews.GetReview).Methods("GET")
		api.HandleFunc("/reviews/{id}", h.Reviews.UpdateReview).Methods("PUT")
		api.HandleFunc("/reviews/{id}/approve", h.Reviews.Approve).Methods("POST")
		api.HandleFunc("/reviews/{id}/reject", h.Reviews.Reject).Methods("POST")
		api.HandleFunc("/reviews/{id}/export", h.Reviews.ExportReview).Methods("GET")
	}

	// Macro hub
	if h.Hub != nil {
		api.HandleFunc("/hub/kpis", h.Hub.GetKPIs).Methods("GET")
		api.HandleFunc("/hub/signals", h.Hub.GetSignals).Methods("GET")
		api.HandleFunc("/hub/reload", h.Hub.Reload).Methods("POST")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log, m))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status; an unhealthy database
// turns the response into 503
func healthCheckHandler(views *handlers.ViewsHandler, db DatabaseHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusOK
		body := map[string]interface{}{
			"status":  "ok",
			"service": "painel-visoes",
		}
		if views != nil {
			body["store"] = views.Health()
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			status, err := db.HealthCheck(ctx)
			cancel()
			body["database"] = status
			if err != nil {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests and observes their latency
func loggingMiddleware(log *logger.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Call next handler
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			duration := time.Since(start)
			m.ObserveHTTP(route, r.Method, strconv.Itoa(rec.status), duration)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": duration,
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

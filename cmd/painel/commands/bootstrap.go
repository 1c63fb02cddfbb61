package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/dashboard"
	"github.com/wonny/marketviews/internal/extraction"
	"github.com/wonny/marketviews/internal/hub"
	"github.com/wonny/marketviews/internal/review"
	"github.com/wonny/marketviews/internal/store"
	"github.com/wonny/marketviews/internal/validate"
	"github.com/wonny/marketviews/internal/viewscale"
	"github.com/wonny/marketviews/pkg/config"
	"github.com/wonny/marketviews/pkg/database"
	"github.com/wonny/marketviews/pkg/httputil"
	"github.com/wonny/marketviews/pkg/logger"
	"github.com/wonny/marketviews/pkg/metrics"
	"github.com/wonny/marketviews/pkg/redis"
)

// app holds every wired component of one CLI invocation
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	scale     *viewscale.Scale
	validator *validate.Validator
	metrics   *metrics.Metrics
	db        *database.DB
	redis     *redis.Client
	store     *store.Store
	dashboard *dashboard.Service
	hub       *hub.Hub
	queue     *review.Queue
	extractor *extraction.Extractor // nil without GEMINI_API_KEY
}

// bootstrapOptions selects what a command needs
type bootstrapOptions struct {
	// logs go to logOut; commands printing tables use stderr
	logOut io.Writer
	// skipLoad leaves the store empty (validate only needs the scale)
	skipLoad bool
	// quiet raises the default level to warn
	quiet bool
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if viewsFile != "" {
		cfg.Sources.ViewsFile = viewsFile
	}
	if storeBackend != "" {
		cfg.StoreBackend = storeBackend
	}
	if scaleName != "" {
		cfg.Scale.Name = scaleName
		cfg.Scale.File = ""
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// bootstrap wires config, logger, scale, backend, cache, store and services
func bootstrap(ctx context.Context, opts bootstrapOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if opts.quiet && !verbose && cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}

	a := &app{cfg: cfg}

	// 1. Logger
	if opts.logOut != nil {
		a.log = logger.NewWithWriter(cfg, opts.logOut)
	} else {
		a.log = logger.New(cfg)
	}

	// 2. View scale
	a.scale, err = viewscale.Resolve(cfg.Scale.Name, cfg.Scale.File)
	if err != nil {
		return nil, fmt.Errorf("resolve scale: %w", err)
	}
	a.validator = validate.New(a.scale)

	// 3. Metrics
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	// 4. Store backend
	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store.New(backend, a.validator, a.metrics, a.log)

	if !opts.skipLoad {
		result, err := a.store.Load(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load store: %w", err)
		}
		for _, fe := range result.Skipped {
			a.log.WithFields(map[string]interface{}{
				"row":   fe.Row,
				"line":  fe.Line,
				"field": fe.Field,
			}).Warn(fe.Reason)
		}
	}

	// 5. Redis (optional projection cache and shared rate limit)
	a.redis, err = redis.New(cfg)
	if err != nil {
		a.log.WithError(err).Warn("Redis unavailable, continuing without cache")
		a.redis = redis.NewWithClient(nil)
	}

	dashOpts := []dashboard.Option{dashboard.WithMetrics(a.metrics)}
	if a.redis.Enabled() {
		dashOpts = append(dashOpts, dashboard.WithCache(redis.NewCache(a.redis, "painel", cfg.Redis.CacheTTL)))
	}
	a.dashboard = dashboard.New(a.store, a.scale, a.log, dashOpts...)

	// 6. Hub tables
	a.hub = hub.New(cfg.Sources.KPIFile, cfg.Sources.SignalsFile, a.log)
	if err := a.hub.Reload(); err != nil {
		a.log.WithError(err).Warn("Hub tables not loaded")
	}

	// 7. Review queue and extraction
	a.queue = review.NewQueue(a.validator, a.store, a.log)
	if cfg.ExtractionEnabled() {
		a.extractor = a.newExtractor()
	}

	return a, nil
}

func (a *app) openBackend(ctx context.Context) (contracts.RecordBackend, error) {
	switch a.cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.New(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.log.WithField("auto_migrate", a.cfg.Database.AutoMigrate).Info("Connected to database")
		return store.NewPostgresBackend(db.Pool), nil

	case config.BackendMemory:
		return store.NewMemoryBackend(), nil

	case config.BackendCSV:
		return store.NewCSVBackend(a.cfg.Sources.ViewsFile), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
}

func (a *app) newExtractor() *extraction.Extractor {
	httpClient := httputil.NewWithTimeout(a.cfg, a.log, a.cfg.Extraction.Timeout)
	if a.redis.Enabled() {
		limiter := redis.NewRateLimiter(a.redis, "painel")
		httpClient = httpClient.WithRateLimiter(limiter, redis.GeminiRateLimit(a.cfg.Extraction.RateLimit))
	} else {
		httpClient = httpClient.WithLocalLimiter(a.cfg.Extraction.RateLimit)
	}

	model := extraction.NewGeminiModel(httpClient, a.log, a.cfg.Gemini.BaseURL, a.cfg.Gemini.Model, a.cfg.Gemini.APIKey)
	return extraction.NewExtractor(model, a.scale, a.cfg.Extraction.Timeout, a.metrics, a.log)
}

// Close releases the database pool and the Redis connection
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
}

// quietBootstrap is bootstrap for table-printing commands: logs go to
// stderr at warn level unless --verbose is set
func quietBootstrap(ctx context.Context, skipLoad bool) (*app, error) {
	return bootstrap(ctx, bootstrapOptions{logOut: os.Stderr, skipLoad: skipLoad, quiet: true})
}

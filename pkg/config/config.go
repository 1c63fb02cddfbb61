package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Data sources
	Sources SourcesConfig

	// View scale (ordering table for the view enumeration)
	Scale ScaleConfig

	// Store backend: csv, postgres, memory
	StoreBackend string

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Extraction (generative model)
	Gemini     GeminiConfig
	Extraction ExtractionConfig

	// Scheduler
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// SourcesConfig holds the tabular file locations
type SourcesConfig struct {
	ViewsFile   string
	KPIFile     string
	SignalsFile string
}

// ScaleConfig selects the view enumeration
type ScaleConfig struct {
	Name string // canonical, extended
	File string // optional YAML file, overrides Name
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// AutoMigrate creates the views table on connect
	AutoMigrate bool
}

// GeminiConfig holds the generative model API configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ExtractionConfig bounds the upstream extraction call
type ExtractionConfig struct {
	Timeout   time.Duration
	RateLimit int // requests per minute
}

// ScheduleConfig holds cron expressions for reload jobs
type ScheduleConfig struct {
	ViewsReload string
	HubReload   string
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Sources: SourcesConfig{
			ViewsFile:   getEnv("VIEWS_FILE", "dados_mercado.csv"),
			KPIFile:     getEnv("KPI_FILE", "kpis.csv"),
			SignalsFile: getEnv("SIGNALS_FILE", "riscos_oportunidades.csv"),
		},

		Scale: ScaleConfig{
			Name: getEnv("SCALE", "canonical"),
			File: getEnv("SCALE_FILE", ""),
		},

		StoreBackend: getEnv("STORE_BACKEND", BackendCSV),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
			ConnectTimeout:  getEnvAsDuration("DB_CONNECT_TIMEOUT", "5s"),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("CACHE_TTL", "10m"),
		},

		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		},

		Extraction: ExtractionConfig{
			Timeout:   getEnvAsDuration("EXTRACTION_TIMEOUT", "90s"),
			RateLimit: getEnvAsInt("EXTRACTION_RATE_LIMIT", 10),
		},

		Schedule: ScheduleConfig{
			ViewsReload: getEnv("RELOAD_SCHEDULE", "0 */15 * * * *"),
			HubReload:   getEnv("HUB_RELOAD_SCHEDULE", "0 0 * * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.StoreBackend {
	case BackendCSV:
		if c.Sources.ViewsFile == "" {
			return fmt.Errorf("VIEWS_FILE is required for the csv backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		if c.Database.ConnectTimeout <= 0 {
			return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: csv, postgres, memory")
	}

	if c.Scale.File == "" && c.Scale.Name != "canonical" && c.Scale.Name != "extended" {
		return fmt.Errorf("SCALE must be one of: canonical, extended")
	}

	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT must be positive")
	}

	return nil
}

// ExtractionEnabled reports whether a model API key is configured
func (c *Config) ExtractionEnabled() bool {
	return c.Gemini.APIKey != ""
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

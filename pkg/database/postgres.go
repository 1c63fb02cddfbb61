package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/marketviews/pkg/config"
)

const applicationName = "painel-visoes"

// DB wraps the pgxpool.Pool holding the views table
// ⭐ SSOT: database connections are created only in this package
type DB struct {
	Pool *pgxpool.Pool
}

// New connects to cfg.Database.URL, pings within the connect timeout and,
// when auto-migrate is on, creates the views table.
// ⭐ SSOT: the only caller of pgxpool.NewWithConfig()
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Pool: pool}
	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close closes the connection pool; safe to call twice
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// HealthStatus describes the views table as seen from the pool
type HealthStatus struct {
	Healthy             bool          `json:"healthy"`
	CheckedAt           time.Time     `json:"checked_at"`
	Latency             time.Duration `json:"latency"`
	Table               string        `json:"table"`
	Records             int64         `json:"records"`
	LatestReferenceDate *time.Time    `json:"latest_reference_date,omitempty"`
	Error               string        `json:"error,omitempty"`
	Pool                PoolStats     `json:"pool"`
}

// PoolStats is the subset of pgxpool statistics worth reporting
type PoolStats struct {
	AcquiredConns     int32 `json:"acquired_conns"`
	IdleConns         int32 `json:"idle_conns"`
	TotalConns        int32 `json:"total_conns"`
	MaxConns          int32 `json:"max_conns"`
	AcquireCount      int64 `json:"acquire_count"`
	EmptyAcquireCount int64 `json:"empty_acquire_count"`
}

// HealthCheck counts the stored views and reads the newest reference date.
// A missing table or an unreachable server is reported as unhealthy.
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Table:     ViewsTable,
		CheckedAt: time.Now(),
	}

	start := time.Now()
	err := db.Pool.QueryRow(ctx, healthQuery).Scan(&status.Records, &status.LatestReferenceDate)
	status.Latency = time.Since(start)
	status.Pool = db.Stats()

	if err != nil {
		status.Error = err.Error()
		return status, fmt.Errorf("views table health check: %w", err)
	}

	status.Healthy = true
	return status, nil
}

// Stats returns the current pool statistics
func (db *DB) Stats() PoolStats {
	stats := db.Pool.Stat()
	return PoolStats{
		AcquiredConns:     stats.AcquiredConns(),
		IdleConns:         stats.IdleConns(),
		TotalConns:        stats.TotalConns(),
		MaxConns:          stats.MaxConns(),
		AcquireCount:      stats.AcquireCount(),
		EmptyAcquireCount: stats.EmptyAcquireCount(),
	}
}

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/pkg/config"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Database.AutoMigrate = true
	db, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func TestNew(t *testing.T) {
	db := newTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.Ping(ctx))
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.Pool.Exec(ctx, "TRUNCATE market_views RESTART IDENTITY")
	require.NoError(t, err)

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, ViewsTable, status.Table)
	assert.Zero(t, status.Records)
	assert.Nil(t, status.LatestReferenceDate)
	assert.NotZero(t, status.Pool.MaxConns)

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO market_views (data_referencia, gestora, sub_classe_ativo, visao)
		 VALUES ('2024-01-10', 'BlackRock', 'EUA', 'Overweight'), ('2024-02-15', 'BlackRock', 'EUA', 'Neutral')`)
	require.NoError(t, err)

	status, err = db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Records)
	require.NotNil(t, status.LatestReferenceDate)
	assert.Equal(t, "2024-02-15", status.LatestReferenceDate.Format("2006-01-02"))
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))

	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		ViewsTable,
	).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             "invalid://url",
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
			ConnectTimeout:  time.Second,
		},
	}

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	db := newTestDB(t)

	// Double close should not panic
	db.Close()
	db.Close()
}

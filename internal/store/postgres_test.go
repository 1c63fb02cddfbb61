package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/pkg/config"
	"github.com/wonny/marketviews/pkg/database"
)

func TestPostgresBackend_AppendLoad(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	cfg.Database.AutoMigrate = true
	db, err := database.New(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Pool.Exec(ctx, "TRUNCATE market_views RESTART IDENTITY")
	require.NoError(t, err)

	s := newTestStore(t, NewPostgresBackend(db.Pool))
	batch := []contracts.ViewRecord{
		rec("BlackRock", "EUA", contracts.Overweight, date(2024, 1, 10)),
		rec("BlackRock", "EUA", contracts.Neutral, date(2024, 1, 10)),
	}
	require.NoError(t, s.Append(ctx, batch))

	reloaded := newTestStore(t, NewPostgresBackend(db.Pool))
	result, err := reloaded.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, batch, reloaded.All(), "insertion order preserved")
}

package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/hub"
	"github.com/wonny/marketviews/internal/review"
	"github.com/wonny/marketviews/internal/store"
	"github.com/wonny/marketviews/internal/validate"
	"github.com/wonny/marketviews/internal/viewscale"
	"github.com/wonny/marketviews/pkg/logger"
)

type failingLoader struct{}

func (failingLoader) Load(ctx context.Context) (*store.LoadResult, error) {
	return nil, errors.New("disk unavailable")
}

func TestViewsReloadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados_mercado.csv")
	st := store.New(store.NewCSVBackend(path), validate.New(viewscale.Canonical), nil, logger.Nop())

	job := NewViewsReloadJob(st, "0 */15 * * * *", logger.Nop())
	assert.Equal(t, "views_reload", job.Name())
	assert.Equal(t, "0 */15 * * * *", job.Schedule())

	out, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Loaded)
	assert.Equal(t, 0, st.Len())

	csv := "data_referencia,gestora,classe_ativo,sub_classe_ativo,visao,resumo_tese\n" +
		"2024-01-10,XP,Ações,Brasil,Neutral,Carrego\n" +
		"2024-01-11,,Ações,Brasil,Bullish,Sem gestora\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	out, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 1, out.Loaded)
	assert.Equal(t, 1, out.Skipped, "one row with two violations")

	_, err = NewViewsReloadJob(failingLoader{}, "@hourly", logger.Nop()).Run(context.Background())
	assert.Error(t, err)
}

func TestHubReloadJob(t *testing.T) {
	dir := t.TempDir()
	kpis := filepath.Join(dir, "kpis.csv")
	require.NoError(t, os.WriteFile(kpis, []byte("metric_name,value\nSelic,10.75\n"), 0o644))

	h := hub.New(kpis, filepath.Join(dir, "missing.csv"), logger.Nop())
	job := NewHubReloadJob(h, "0 0 * * * *")
	assert.Equal(t, "hub_reload", job.Name())

	out, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Loaded)
	assert.Len(t, h.KPIs(), 1)
	assert.Empty(t, h.Risks())
}

type noopAppender struct{}

func (noopAppender) AppendRaw(ctx context.Context, batch []contracts.RawRecord) ([]contracts.ViewRecord, error) {
	return nil, nil
}

func TestReviewPurgeJob(t *testing.T) {
	q := review.NewQueue(validate.New(viewscale.Canonical), noopAppender{}, logger.Nop())

	closed := q.Submit("XP", "manual", []contracts.RawRecord{{Manager: "XP"}}, "")
	_, err := q.Reject(closed.ID, "")
	require.NoError(t, err)
	q.Submit("XP", "manual", []contracts.RawRecord{{Manager: "XP"}}, "")

	job := NewReviewPurgeJob(q, -time.Hour, logger.Nop())
	assert.Equal(t, "review_purge", job.Name())
	out, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Purged)

	assert.Len(t, q.List(""), 1)
	assert.Len(t, q.List(review.StatusPending), 1)
}

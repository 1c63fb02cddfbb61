package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/marketviews/internal/contracts"
)

// PostgresBackend persists rows in the market_views table
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a backend on an open pool.
// The schema is created by database.DB.EnsureSchema.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Name() string { return "postgres" }

// Load reads every row in insertion order
func (b *PostgresBackend) Load(ctx context.Context) ([]contracts.RawRecord, error) {
	query := `
		SELECT
			data_referencia, gestora, classe_ativo, sub_classe_ativo,
			visao, resumo_tese, frase_justificativa
		FROM market_views
		ORDER BY id
	`

	rows, err := b.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query market views: %w", err)
	}
	defer rows.Close()

	var out []contracts.RawRecord
	for rows.Next() {
		var date time.Time
		var raw contracts.RawRecord

		err := rows.Scan(
			&date,
			&raw.Manager,
			&raw.AssetClass,
			&raw.AssetSubclass,
			&raw.View,
			&raw.ThesisSummary,
			&raw.JustificationQuote,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		raw.ReferenceDate = date.Format(contracts.DateLayout)
		out = append(out, raw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// Append inserts the batch in one transaction
func (b *PostgresBackend) Append(ctx context.Context, records []contracts.ViewRecord) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO market_views (
			data_referencia, gestora, classe_ativo, sub_classe_ativo,
			visao, resumo_tese, frase_justificativa
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.ReferenceDate,
			rec.Manager,
			rec.AssetClass,
			rec.AssetSubclass,
			string(rec.View),
			rec.ThesisSummary,
			rec.JustificationQuote,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

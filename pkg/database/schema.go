package database

import (
	"context"
	"fmt"
)

// ViewsTable holds the source of record when the postgres backend is used.
// id preserves insertion order for the recency tie-break.
const ViewsTable = "market_views"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS market_views (
		id                  BIGSERIAL PRIMARY KEY,
		data_referencia     DATE        NOT NULL,
		gestora             TEXT        NOT NULL,
		classe_ativo        TEXT        NOT NULL DEFAULT '',
		sub_classe_ativo    TEXT        NOT NULL,
		visao               TEXT        NOT NULL,
		resumo_tese         TEXT        NOT NULL DEFAULT '',
		frase_justificativa TEXT        NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_market_views_key
		ON market_views (gestora, sub_classe_ativo, data_referencia)`,
}

const healthQuery = `SELECT count(*), max(data_referencia) FROM market_views`

// EnsureSchema creates the views table and its index if they are missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

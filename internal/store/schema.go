// Package store implements the PostgreSQL repositories behind the
// contracts interfaces.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. Sources never share
// taxonomy columns: GICS providers write gics_sector/gics_industry,
// Polygon writes sic_code/sic_description, ETFDB writes asset_class.
// sector and industry are derived presentation columns.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS securities (
		symbol              TEXT PRIMARY KEY,
		name                TEXT,
		asset_type          TEXT,
		market_cap          DOUBLE PRECISION,
		gics_sector         TEXT,
		gics_industry       TEXT,
		sic_code            TEXT,
		sic_description     TEXT,
		asset_class         TEXT,
		sector              TEXT,
		industry            TEXT,
		description         TEXT,
		exchange            TEXT,
		currency            TEXT,
		current_price       DOUBLE PRECISION,
		pe_ratio            DOUBLE PRECISION,
		dividend_yield      DOUBLE PRECISION,
		year_performance    DOUBLE PRECISION,
		fifty_two_week_high DOUBLE PRECISION,
		fifty_two_week_low  DOUBLE PRECISION,
		beta                DOUBLE PRECISION,
		volume              BIGINT,
		avg_volume          BIGINT,
		expense_ratio       DOUBLE PRECISION,
		last_updated        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_securities_asset_type ON securities (asset_type)`,
	`CREATE INDEX IF NOT EXISTS idx_securities_sector ON securities (sector)`,

	// The (etf, constituent) primary key means a constituent reported
	// by two sources for the same ETF keeps only the latest source's
	// row; snapshots from different sources stay independent only for
	// disjoint constituent sets.
	`CREATE TABLE IF NOT EXISTS etf_holdings (
		etf_symbol          TEXT NOT NULL REFERENCES securities (symbol),
		constituent_symbol  TEXT NOT NULL REFERENCES securities (symbol),
		holding_percent     DOUBLE PRECISION,
		holding_rank        INTEGER,
		source              TEXT NOT NULL,
		last_updated        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (etf_symbol, constituent_symbol)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_etf_holdings_constituent ON etf_holdings (constituent_symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_etf_holdings_source ON etf_holdings (etf_symbol, source)`,

	`CREATE TABLE IF NOT EXISTS backfill_state (
		symbol       TEXT NOT NULL,
		task_kind    TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		attempts     INTEGER NOT NULL DEFAULT 0,
		last_attempt TIMESTAMPTZ,
		last_error   TEXT,
		PRIMARY KEY (symbol, task_kind)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_backfill_state_status ON backfill_state (task_kind, status)`,

	`CREATE TABLE IF NOT EXISTS theses (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT,
		keywords    JSONB NOT NULL DEFAULT '[]',
		sectors     JSONB NOT NULL DEFAULT '[]',
		priority    INTEGER NOT NULL DEFAULT 0,
		selected    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_theses_title ON theses (title)`,

	`CREATE TABLE IF NOT EXISTS thesis_alignments (
		id               BIGSERIAL PRIMARY KEY,
		thesis_id        BIGINT NOT NULL REFERENCES theses (id),
		thesis_name      TEXT NOT NULL,
		symbol           TEXT NOT NULL REFERENCES securities (symbol),
		alignment_score  INTEGER NOT NULL,
		rationale        TEXT,
		current_price    DOUBLE PRECISION,
		market_cap       DOUBLE PRECISION,
		pe_ratio         DOUBLE PRECISION,
		dividend_yield   DOUBLE PRECISION,
		year_performance DOUBLE PRECISION,
		analysis_date    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_thesis_alignments_thesis ON thesis_alignments (thesis_id, analysis_date DESC)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// HoldingsRepository persists per-(etf, source) holdings snapshots.
type HoldingsRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewHoldingsRepository creates a new HoldingsRepository instance.
func NewHoldingsRepository(db *pgxpool.Pool, log *logger.Logger) *HoldingsRepository {
	return &HoldingsRepository{db: db, logger: log}
}

// ReplaceSnapshot atomically replaces the (etf, source) snapshot.
// Rank is assigned 1..N in input order; providers deliver holdings
// already sorted by descending weight. An empty list legitimately
// clears the snapshot. Placeholders are created for the ETF and every
// constituent inside the same transaction, so either the whole
// snapshot lands or none of it does.
func (r *HoldingsRepository) ReplaceSnapshot(ctx context.Context, etfSymbol, source string, holdings []contracts.Holding) error {
	etfSymbol = strings.ToUpper(strings.TrimSpace(etfSymbol))
	if etfSymbol == "" {
		return fmt.Errorf("replace snapshot: missing etf symbol")
	}
	if source == "" {
		return fmt.Errorf("replace snapshot: missing source")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin holdings tx: %w", err)
	}
	defer tx.Rollback(ctx)

	placeholder := `
		INSERT INTO securities (symbol, name, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (symbol) DO NOTHING
	`

	if _, err := tx.Exec(ctx, placeholder, etfSymbol, etfSymbol); err != nil {
		return fmt.Errorf("ensure etf placeholder %s: %w", etfSymbol, err)
	}

	for _, h := range holdings {
		symbol := strings.ToUpper(strings.TrimSpace(h.ConstituentSymbol))
		if symbol == "" {
			return fmt.Errorf("replace snapshot %s: constituent without symbol", etfSymbol)
		}
		name := h.Name
		if name == "" {
			name = symbol
		}
		if _, err := tx.Exec(ctx, placeholder, symbol, name); err != nil {
			return fmt.Errorf("ensure constituent placeholder %s: %w", symbol, err)
		}
	}

	// Drop this source's previous snapshot; other sources' rows stay.
	if _, err := tx.Exec(ctx,
		`DELETE FROM etf_holdings WHERE etf_symbol = $1 AND source = $2`,
		etfSymbol, source,
	); err != nil {
		return fmt.Errorf("clear snapshot %s/%s: %w", etfSymbol, source, err)
	}

	insert := `
		INSERT INTO etf_holdings (
			etf_symbol, constituent_symbol, holding_percent, holding_rank, source, last_updated
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (etf_symbol, constituent_symbol) DO UPDATE SET
			holding_percent = EXCLUDED.holding_percent,
			holding_rank    = EXCLUDED.holding_rank,
			source          = EXCLUDED.source,
			last_updated    = NOW()
	`

	for i, h := range holdings {
		symbol := strings.ToUpper(strings.TrimSpace(h.ConstituentSymbol))
		if _, err := tx.Exec(ctx, insert, etfSymbol, symbol, h.HoldingPercent, i+1, source); err != nil {
			return fmt.Errorf("insert holding %s/%s: %w", etfSymbol, symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit holdings tx: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"etf":    etfSymbol,
		"source": source,
		"count":  len(holdings),
	}).Debug("Replaced holdings snapshot")

	return nil
}

// GetByETF returns the stored snapshot rows for an ETF in rank order.
func (r *HoldingsRepository) GetByETF(ctx context.Context, etfSymbol string) ([]contracts.Holding, error) {
	query := `
		SELECT etf_symbol, constituent_symbol, holding_percent, holding_rank, source, last_updated
		FROM etf_holdings
		WHERE etf_symbol = $1
		ORDER BY holding_rank
	`

	rows, err := r.db.Query(ctx, query, strings.ToUpper(etfSymbol))
	if err != nil {
		return nil, fmt.Errorf("query holdings %s: %w", etfSymbol, err)
	}
	defer rows.Close()

	var holdings []contracts.Holding
	for rows.Next() {
		var h contracts.Holding
		if err := rows.Scan(
			&h.ETFSymbol, &h.ConstituentSymbol, &h.HoldingPercent,
			&h.HoldingRank, &h.Source, &h.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	return holdings, rows.Err()
}

// ConstituentSymbols returns the distinct constituents across all
// snapshots in alphabetical order.
func (r *HoldingsRepository) ConstituentSymbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT constituent_symbol
		FROM etf_holdings
		ORDER BY constituent_symbol
	`

	return r.querySymbols(ctx, query)
}

// UnenrichedConstituents returns constituents whose security rows are
// still placeholders, alphabetically. These drive the enrichment pass.
func (r *HoldingsRepository) UnenrichedConstituents(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT h.constituent_symbol
		FROM etf_holdings h
		JOIN securities s ON s.symbol = h.constituent_symbol
		WHERE s.sector IS NULL AND s.description IS NULL
		ORDER BY h.constituent_symbol
	`

	return r.querySymbols(ctx, query)
}

func (r *HoldingsRepository) querySymbols(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

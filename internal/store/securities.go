package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// SecurityRepository persists canonical security rows.
type SecurityRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewSecurityRepository creates a new SecurityRepository instance.
func NewSecurityRepository(db *pgxpool.Pool, log *logger.Logger) *SecurityRepository {
	return &SecurityRepository{db: db, logger: log}
}

const securityColumns = `
	symbol, name, asset_type, market_cap,
	gics_sector, gics_industry, sic_code, sic_description, asset_class,
	sector, industry, description, exchange, currency,
	current_price, pe_ratio, dividend_yield, year_performance,
	fifty_two_week_high, fifty_two_week_low, beta,
	volume, avg_volume, expense_ratio, last_updated`

// Get returns the stored row, or nil when the symbol is unknown.
func (r *SecurityRepository) Get(ctx context.Context, symbol string) (*contracts.Security, error) {
	query := `SELECT ` + securityColumns + ` FROM securities WHERE symbol = $1`

	sec, err := scanSecurity(r.db.QueryRow(ctx, query, symbol))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query security %s: %w", symbol, err)
	}

	return sec, nil
}

// mergeRule says how one column takes an incoming value on conflict.
type mergeRule int

const (
	// fillIfMissing keeps the stored value; the incoming one only
	// fills a null. Repeating the same upsert never changes the row.
	fillIfMissing mergeRule = iota
	// alwaysRefresh takes the incoming value whenever the source
	// reports one; the stored value only survives a null input.
	alwaysRefresh
)

// mergePolicy classifies every merged column. Classification and
// descriptive fields fill only when missing, so an earlier source is
// never overwritten by a later one; genuinely time-varying fields
// always refresh.
var mergePolicy = []struct {
	column string
	rule   mergeRule
}{
	{"asset_type", fillIfMissing},
	{"market_cap", fillIfMissing},
	{"gics_sector", fillIfMissing},
	{"gics_industry", fillIfMissing},
	{"sic_code", fillIfMissing},
	{"sic_description", fillIfMissing},
	{"asset_class", fillIfMissing},
	{"description", fillIfMissing},
	{"exchange", fillIfMissing},
	{"currency", fillIfMissing},
	{"pe_ratio", fillIfMissing},
	{"dividend_yield", fillIfMissing},
	{"fifty_two_week_high", fillIfMissing},
	{"fifty_two_week_low", fillIfMissing},
	{"beta", fillIfMissing},
	{"avg_volume", fillIfMissing},
	{"expense_ratio", fillIfMissing},
	{"current_price", alwaysRefresh},
	{"volume", alwaysRefresh},
	{"year_performance", alwaysRefresh},
}

// mergeAssignment renders one column's conflict assignment. COALESCE
// argument order is the whole policy: existing-first fills only nulls,
// incoming-first refreshes.
func mergeAssignment(column string, rule mergeRule) string {
	if rule == alwaysRefresh {
		return fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, securities.%s)", column, column, column)
	}
	return fmt.Sprintf("%s = COALESCE(securities.%s, EXCLUDED.%s)", column, column, column)
}

// Name is placeholder-aware: a stored name that is empty or just the
// symbol echoed back counts as missing.
const nameMerge = `name = CASE
			WHEN securities.name IS NULL OR securities.name = '' OR securities.name = securities.symbol
			THEN COALESCE(EXCLUDED.name, securities.name)
			ELSE securities.name
		END`

// The derived sector and industry presentation columns are recomputed
// from the merged taxonomy columns in the same statement.
const derivedMerge = `sector = COALESCE(
			securities.gics_sector, EXCLUDED.gics_sector,
			securities.asset_class, EXCLUDED.asset_class
		),
		industry = COALESCE(securities.gics_industry, EXCLUDED.gics_industry)`

func mergeClause() string {
	parts := make([]string, 0, len(mergePolicy)+3)
	parts = append(parts, nameMerge)
	for _, p := range mergePolicy {
		parts = append(parts, mergeAssignment(p.column, p.rule))
	}
	parts = append(parts, derivedMerge)
	parts = append(parts, "last_updated = NOW()")
	return strings.Join(parts, ",\n\t\t")
}

// upsertQuery merges one source patch into the canonical row per
// mergePolicy.
var upsertQuery = `
	INSERT INTO securities (
		symbol, name, asset_type, market_cap,
		gics_sector, gics_industry, sic_code, sic_description, asset_class,
		sector, industry, description, exchange, currency,
		current_price, pe_ratio, dividend_yield, year_performance,
		fifty_two_week_high, fifty_two_week_low, beta,
		volume, avg_volume, expense_ratio, last_updated
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9,
		COALESCE($5, $9), $6, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19,
		$20, $21, $22, NOW()
	)
	ON CONFLICT (symbol) DO UPDATE SET
		` + mergeClause() + `
	RETURNING ` + securityColumns

// Upsert merges a source's normalized patch into the canonical row and
// returns the post-merge state. A storage conflict from a concurrent
// writer is retried once before failing the symbol.
func (r *SecurityRepository) Upsert(ctx context.Context, patch *contracts.SecurityPatch, source string) (*contracts.Security, error) {
	if strings.TrimSpace(patch.Symbol) == "" {
		return nil, fmt.Errorf("upsert: missing symbol")
	}

	var sec *contracts.Security
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		sec, err = r.upsertOnce(ctx, patch)
		if err == nil {
			return sec, nil
		}
		if !isWriteConflict(err) {
			break
		}
		r.logger.WithFields(map[string]interface{}{
			"symbol": patch.Symbol,
			"source": source,
		}).Warn("Retrying security upsert after write conflict")
	}

	return nil, fmt.Errorf("upsert security %s from %s: %w", patch.Symbol, source, err)
}

func (r *SecurityRepository) upsertOnce(ctx context.Context, p *contracts.SecurityPatch) (*contracts.Security, error) {
	row := r.db.QueryRow(ctx, upsertQuery,
		strings.ToUpper(strings.TrimSpace(p.Symbol)),
		nullString(p.Name),
		nullString(p.AssetType),
		p.MarketCap,
		nullString(p.GICSSector),
		nullString(p.GICSIndustry),
		nullString(p.SICCode),
		nullString(p.SICDescription),
		nullString(p.AssetClass),
		nullString(p.Description),
		nullString(p.Exchange),
		nullString(p.Currency),
		p.CurrentPrice,
		p.PERatio,
		p.DividendYield,
		p.YearPerformance,
		p.FiftyTwoWeekHigh,
		p.FiftyTwoWeekLow,
		p.Beta,
		p.Volume,
		p.AvgVolume,
		p.ExpenseRatio,
	)

	return scanSecurity(row)
}

// EnsurePlaceholder inserts a minimal row for a referenced symbol so
// foreign keys hold before the symbol is enriched. An existing row is
// left untouched.
func (r *SecurityRepository) EnsurePlaceholder(ctx context.Context, symbol, name string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("ensure placeholder: missing symbol")
	}
	if name == "" {
		name = symbol
	}

	query := `
		INSERT INTO securities (symbol, name, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (symbol) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, symbol, name); err != nil {
		return fmt.Errorf("ensure placeholder %s: %w", symbol, err)
	}

	return nil
}

// ListSymbols returns all symbols of the given asset type in
// alphabetical order. An empty assetType lists everything.
func (r *SecurityRepository) ListSymbols(ctx context.Context, assetType string) ([]string, error) {
	query := `SELECT symbol FROM securities ORDER BY symbol`
	args := []interface{}{}
	if assetType != "" {
		query = `SELECT symbol FROM securities WHERE asset_type = $1 ORDER BY symbol`
		args = append(args, assetType)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
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

// scanSecurity reads one securities row into the contract type.
func scanSecurity(row pgx.Row) (*contracts.Security, error) {
	var sec contracts.Security
	var name, assetType *string
	var gicsSector, gicsIndustry, sicCode, sicDescription, assetClass *string
	var sector, industry, description, exchange, currency *string

	err := row.Scan(
		&sec.Symbol, &name, &assetType, &sec.MarketCap,
		&gicsSector, &gicsIndustry, &sicCode, &sicDescription, &assetClass,
		&sector, &industry, &description, &exchange, &currency,
		&sec.CurrentPrice, &sec.PERatio, &sec.DividendYield, &sec.YearPerformance,
		&sec.FiftyTwoWeekHigh, &sec.FiftyTwoWeekLow, &sec.Beta,
		&sec.Volume, &sec.AvgVolume, &sec.ExpenseRatio, &sec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	sec.Name = deref(name)
	sec.AssetType = deref(assetType)
	sec.GICSSector = deref(gicsSector)
	sec.GICSIndustry = deref(gicsIndustry)
	sec.SICCode = deref(sicCode)
	sec.SICDescription = deref(sicDescription)
	sec.AssetClass = deref(assetClass)
	sec.Sector = deref(sector)
	sec.Industry = deref(industry)
	sec.Description = deref(description)
	sec.Exchange = deref(exchange)
	sec.Currency = deref(currency)

	return &sec, nil
}

// isWriteConflict reports whether the error is a transient conflict
// from a concurrent writer (serialization failure, deadlock, or the
// insert race on a unique key).
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func nullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

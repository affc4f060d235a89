package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// ThesisRepository persists theses and their alignment results.
type ThesisRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewThesisRepository creates a new ThesisRepository instance.
func NewThesisRepository(db *pgxpool.Pool, log *logger.Logger) *ThesisRepository {
	return &ThesisRepository{db: db, logger: log}
}

// Import inserts or updates theses by title. Re-importing keeps the
// stored priority and selected flags so curation survives refreshes
// of the thesis file. Returns the number of rows written.
func (r *ThesisRepository) Import(ctx context.Context, theses []*contracts.Thesis) (int, error) {
	query := `
		INSERT INTO theses (title, description, keywords, sectors, priority, selected)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (title) DO UPDATE SET
			description = EXCLUDED.description,
			keywords    = EXCLUDED.keywords,
			sectors     = EXCLUDED.sectors
	`

	written := 0
	for _, thesis := range theses {
		if thesis.Title == "" {
			return written, fmt.Errorf("import thesis: missing title")
		}

		keywordsJSON, err := json.Marshal(emptyIfNil(thesis.Keywords))
		if err != nil {
			return written, fmt.Errorf("marshal keywords: %w", err)
		}
		sectorsJSON, err := json.Marshal(emptyIfNil(thesis.Sectors))
		if err != nil {
			return written, fmt.Errorf("marshal sectors: %w", err)
		}

		if _, err := r.db.Exec(ctx, query,
			thesis.Title, thesis.Description, keywordsJSON, sectorsJSON,
			thesis.Priority, thesis.Selected,
		); err != nil {
			return written, fmt.Errorf("import thesis %q: %w", thesis.Title, err)
		}
		written++
	}

	r.logger.WithField("count", written).Info("Imported theses")
	return written, nil
}

const thesisColumns = `id, title, description, keywords, sectors, priority, selected, created_at`

// List returns theses ordered by priority (lowest number first) then title.
func (r *ThesisRepository) List(ctx context.Context, selectedOnly bool) ([]*contracts.Thesis, error) {
	query := `SELECT ` + thesisColumns + ` FROM theses ORDER BY priority, title`
	if selectedOnly {
		query = `SELECT ` + thesisColumns + ` FROM theses WHERE selected ORDER BY priority, title`
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list theses: %w", err)
	}
	defer rows.Close()

	var theses []*contracts.Thesis
	for rows.Next() {
		thesis, err := scanThesis(rows)
		if err != nil {
			return nil, err
		}
		theses = append(theses, thesis)
	}

	return theses, rows.Err()
}

// Get returns one thesis, or nil when unknown.
func (r *ThesisRepository) Get(ctx context.Context, id int64) (*contracts.Thesis, error) {
	row := r.db.QueryRow(ctx, `SELECT `+thesisColumns+` FROM theses WHERE id = $1`, id)

	thesis, err := scanThesis(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query thesis %d: %w", id, err)
	}

	return thesis, nil
}

// SetSelected toggles whether a thesis participates in research runs.
func (r *ThesisRepository) SetSelected(ctx context.Context, id int64, selected bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE theses SET selected = $2 WHERE id = $1`, id, selected)
	if err != nil {
		return fmt.Errorf("set selected %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("thesis %d not found", id)
	}
	return nil
}

// SetPriority updates a thesis's priority.
func (r *ThesisRepository) SetPriority(ctx context.Context, id int64, priority int) error {
	tag, err := r.db.Exec(ctx, `UPDATE theses SET priority = $2 WHERE id = $1`, id, priority)
	if err != nil {
		return fmt.Errorf("set priority %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("thesis %d not found", id)
	}
	return nil
}

// SaveAlignment appends one scoring result with its metric snapshot.
// Rows are never updated: history is the point.
func (r *ThesisRepository) SaveAlignment(ctx context.Context, a *contracts.Alignment) error {
	query := `
		INSERT INTO thesis_alignments (
			thesis_id, thesis_name, symbol, alignment_score, rationale,
			current_price, market_cap, pe_ratio, dividend_yield, year_performance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if _, err := r.db.Exec(ctx, query,
		a.ThesisID, a.ThesisName, a.Symbol, a.Score, a.Rationale,
		a.CurrentPrice, a.MarketCap, a.PERatio, a.DividendYield, a.YearPerformance,
	); err != nil {
		return fmt.Errorf("save alignment %s/%d: %w", a.Symbol, a.ThesisID, err)
	}

	return nil
}

// ListAlignments returns the most recent alignment rows for a thesis,
// best scores first.
func (r *ThesisRepository) ListAlignments(ctx context.Context, thesisID int64, limit int) ([]*contracts.Alignment, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, thesis_id, thesis_name, symbol, alignment_score, rationale,
			current_price, market_cap, pe_ratio, dividend_yield, year_performance,
			analysis_date
		FROM thesis_alignments
		WHERE thesis_id = $1
		ORDER BY analysis_date DESC, alignment_score DESC
		LIMIT $2
	`, thesisID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alignments: %w", err)
	}
	defer rows.Close()

	var alignments []*contracts.Alignment
	for rows.Next() {
		var a contracts.Alignment
		var rationale *string
		if err := rows.Scan(
			&a.ID, &a.ThesisID, &a.ThesisName, &a.Symbol, &a.Score, &rationale,
			&a.CurrentPrice, &a.MarketCap, &a.PERatio, &a.DividendYield, &a.YearPerformance,
			&a.AnalysisDate,
		); err != nil {
			return nil, fmt.Errorf("scan alignment: %w", err)
		}
		if rationale != nil {
			a.Rationale = *rationale
		}
		alignments = append(alignments, &a)
	}

	return alignments, rows.Err()
}

func scanThesis(row pgx.Row) (*contracts.Thesis, error) {
	var thesis contracts.Thesis
	var description *string
	var keywordsJSON, sectorsJSON []byte

	err := row.Scan(
		&thesis.ID, &thesis.Title, &description, &keywordsJSON, &sectorsJSON,
		&thesis.Priority, &thesis.Selected, &thesis.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description != nil {
		thesis.Description = *description
	}
	if err := json.Unmarshal(keywordsJSON, &thesis.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := json.Unmarshal(sectorsJSON, &thesis.Sectors); err != nil {
		return nil, fmt.Errorf("unmarshal sectors: %w", err)
	}

	return &thesis, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

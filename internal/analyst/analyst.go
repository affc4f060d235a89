package analyst

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// Analyst runs thesis alignment analysis over stored securities.
type Analyst struct {
	securities contracts.SecurityRepository
	theses     contracts.ThesisRepository
	logger     *logger.Logger
}

// New creates a new Analyst instance.
func New(securities contracts.SecurityRepository, theses contracts.ThesisRepository, log *logger.Logger) *Analyst {
	return &Analyst{
		securities: securities,
		theses:     theses,
		logger:     log.WithField("module", "analyst"),
	}
}

// thesisFile is the import format: either {"theses": [...]} or a bare
// array. Entries may use "name" or "title" for the thesis title.
type thesisFile struct {
	Theses []thesisEntry `json:"theses"`
}

type thesisEntry struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Sectors     []string `json:"sectors"`
}

func (e thesisEntry) title() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Title
}

// ImportFile loads theses from a JSON file into the store. Existing
// theses keep their priority and selected flags.
func (a *Analyst) ImportFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read theses file: %w", err)
	}
	return a.importJSON(ctx, data)
}

func (a *Analyst) importJSON(ctx context.Context, data []byte) (int, error) {
	var entries []thesisEntry

	var wrapped thesisFile
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Theses) > 0 {
		entries = wrapped.Theses
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse theses: expected object with theses array or bare array: %w", err)
	}

	theses := make([]*contracts.Thesis, 0, len(entries))
	for _, e := range entries {
		title := e.title()
		if title == "" {
			return 0, fmt.Errorf("thesis entry has no name or title")
		}
		theses = append(theses, &contracts.Thesis{
			Title:       title,
			Description: e.Description,
			Keywords:    e.Keywords,
			Sectors:     e.Sectors,
		})
	}

	return a.theses.Import(ctx, theses)
}

// AnalyzeThesis scores each symbol against the thesis, persists one
// alignment row per symbol, and returns the results best-first.
// Symbols without a stored security row are skipped with a warning.
func (a *Analyst) AnalyzeThesis(ctx context.Context, thesisID int64, symbols []string) ([]*contracts.Alignment, error) {
	thesis, err := a.theses.Get(ctx, thesisID)
	if err != nil {
		return nil, fmt.Errorf("get thesis: %w", err)
	}
	if thesis == nil {
		return nil, fmt.Errorf("thesis %d not found", thesisID)
	}

	a.logger.WithFields(map[string]interface{}{
		"thesis":       thesis.Title,
		"symbol_count": len(symbols),
	}).Info("Starting thesis analysis")

	var results []*contracts.Alignment
	for _, symbol := range symbols {
		sec, err := a.securities.Get(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("get security %s: %w", symbol, err)
		}
		if sec == nil {
			a.logger.WithField("symbol", symbol).Warn("Symbol not in store, skipping")
			continue
		}

		score, rationale := Score(sec, thesis)
		alignment := &contracts.Alignment{
			ThesisID:        thesis.ID,
			ThesisName:      thesis.Title,
			Symbol:          sec.Symbol,
			Score:           score,
			Rationale:       rationale,
			CurrentPrice:    sec.CurrentPrice,
			MarketCap:       sec.MarketCap,
			PERatio:         sec.PERatio,
			DividendYield:   sec.DividendYield,
			YearPerformance: sec.YearPerformance,
		}

		if err := a.theses.SaveAlignment(ctx, alignment); err != nil {
			return nil, fmt.Errorf("save alignment %s: %w", sec.Symbol, err)
		}
		results = append(results, alignment)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	a.logger.WithFields(map[string]interface{}{
		"thesis":   thesis.Title,
		"analyzed": len(results),
	}).Info("Thesis analysis completed")

	return results, nil
}

// ExportCSV writes the stored alignment rows for a thesis as CSV,
// best scores first.
func (a *Analyst) ExportCSV(ctx context.Context, thesisID int64, limit int, w io.Writer) (int, error) {
	alignments, err := a.theses.ListAlignments(ctx, thesisID, limit)
	if err != nil {
		return 0, fmt.Errorf("list alignments: %w", err)
	}

	sort.SliceStable(alignments, func(i, j int) bool {
		return alignments[i].Score > alignments[j].Score
	})

	cw := csv.NewWriter(w)
	header := []string{"Symbol", "Thesis", "Score", "Rationale", "Price", "Market Cap", "P/E Ratio", "Div Yield %", "1Y %", "Date"}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	for _, al := range alignments {
		row := []string{
			al.Symbol,
			al.ThesisName,
			strconv.Itoa(al.Score),
			al.Rationale,
			formatMoney(al.CurrentPrice),
			formatMoney(al.MarketCap),
			formatFloat(al.PERatio),
			formatPercent(al.DividendYield),
			formatPercent(al.YearPerformance),
			al.AnalysisDate.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}

	return len(alignments), nil
}

func formatMoney(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func formatPercent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

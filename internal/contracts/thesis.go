package contracts

import (
	"time"
)

// Thesis is an investment idea that securities are scored against.
type Thesis struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Keywords    []string  `json:"keywords"`
	Sectors     []string  `json:"sectors"`
	Priority    int       `json:"priority"`
	Selected    bool      `json:"selected"`
	CreatedAt   time.Time `json:"created_at"`
}

// Alignment is one append-only scoring result for (thesis, security),
// with a snapshot of the metrics the 0-100 score was computed from.
type Alignment struct {
	ID         int64  `json:"id"`
	ThesisID   int64  `json:"thesis_id"`
	ThesisName string `json:"thesis_name"`
	Symbol     string `json:"symbol"`
	Score      int    `json:"score"`
	Rationale  string `json:"rationale"`

	CurrentPrice    *float64 `json:"current_price,omitempty"`
	MarketCap       *float64 `json:"market_cap,omitempty"`
	PERatio         *float64 `json:"pe_ratio,omitempty"`
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	YearPerformance *float64 `json:"year_performance,omitempty"`

	AnalysisDate time.Time `json:"analysis_date"`
}

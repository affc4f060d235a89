package contracts

import (
	"time"
)

// Security is the canonical reconciled row for one symbol. Pointer
// fields are nullable columns; nil means the value has never been
// observed from any source.
type Security struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	AssetType string `json:"asset_type,omitempty"`

	MarketCap *float64 `json:"market_cap,omitempty"`

	// Taxonomy columns. Each source writes only the columns of its own
	// classification scheme.
	GICSSector     string `json:"gics_sector,omitempty"`
	GICSIndustry   string `json:"gics_industry,omitempty"`
	SICCode        string `json:"sic_code,omitempty"`
	SICDescription string `json:"sic_description,omitempty"`
	AssetClass     string `json:"asset_class,omitempty"`

	// Derived presentation columns, never written directly by a source.
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`

	Description string `json:"description,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	Currency    string `json:"currency,omitempty"`

	CurrentPrice     *float64 `json:"current_price,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	DividendYield    *float64 `json:"dividend_yield,omitempty"`
	YearPerformance  *float64 `json:"year_performance,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	Volume           *int64   `json:"volume,omitempty"`
	AvgVolume        *int64   `json:"avg_volume,omitempty"`
	ExpenseRatio     *float64 `json:"expense_ratio,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// IsStale reports whether the row is older than ttl and should be
// refreshed from a provider.
func (s *Security) IsStale(ttl time.Duration, now time.Time) bool {
	if s.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(s.LastUpdated) > ttl
}

// IsEnriched reports whether the row has been filled beyond a
// placeholder: either classified or described by some source.
func (s *Security) IsEnriched() bool {
	return s.Sector != "" || s.Description != ""
}

// SecurityPatch is one source's normalized contribution for a symbol.
// Empty strings and nil numerics mean the source did not report the
// field, so the merge keeps whatever is already stored.
type SecurityPatch struct {
	Symbol    string
	Name      string
	AssetType string

	MarketCap *float64

	GICSSector     string
	GICSIndustry   string
	SICCode        string
	SICDescription string
	AssetClass     string

	Description string
	Exchange    string
	Currency    string

	CurrentPrice     *float64
	PERatio          *float64
	DividendYield    *float64
	YearPerformance  *float64
	FiftyTwoWeekHigh *float64
	FiftyTwoWeekLow  *float64
	Beta             *float64
	Volume           *int64
	AvgVolume        *int64
	ExpenseRatio     *float64
}

// Holding is one constituent row of an ETF holdings snapshot.
// HoldingPercent is on a 0-100 scale and HoldingRank is 1-based with
// 1 meaning the largest allocation.
type Holding struct {
	ETFSymbol         string    `json:"etf_symbol"`
	ConstituentSymbol string    `json:"constituent_symbol"`
	Name              string    `json:"name,omitempty"`
	HoldingPercent    float64   `json:"holding_percent"`
	HoldingRank       int       `json:"holding_rank"`
	Source            string    `json:"source"`
	LastUpdated       time.Time `json:"last_updated"`
}

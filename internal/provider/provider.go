// Package provider defines the contract every external data source
// adapter implements, plus the shared record and error types.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Taxonomy identifies the sector classification scheme a provider reports.
type Taxonomy string

const (
	// TaxonomyGICS providers report sector/industry (Yahoo, Alpha Vantage).
	TaxonomyGICS Taxonomy = "gics"
	// TaxonomySIC providers report SIC code/description (Polygon).
	TaxonomySIC Taxonomy = "sic"
	// TaxonomyAssetClass providers report a fund classification (ETFDB).
	TaxonomyAssetClass Taxonomy = "asset_class"
)

// Conventions describes how a provider reports its raw values. The
// normalizer branches on these capabilities, never on the provider name.
type Conventions struct {
	// MarketCapMillions is true when the provider reports market cap
	// (or assets under management) in millions of dollars.
	MarketCapMillions bool
	// DividendYieldDecimal is true when the provider reports dividend
	// yield as a decimal fraction (0.025) rather than percentage
	// points (2.5).
	DividendYieldDecimal bool
	// Taxonomy selects which sector columns the provider's
	// classification is routed to.
	Taxonomy Taxonomy
}

// Record is the raw field set fetched from a provider, before
// normalization. String fields are "" when absent; numeric fields are
// nil when absent. Raw numeric values keep whatever unit and
// convention the provider uses.
type Record struct {
	Symbol    string
	Name      string
	AssetType string

	MarketCap        *float64
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

	// Sector classification in the provider's own taxonomy.
	Sector         string // GICS sector or fund asset class
	Industry       string // GICS industry
	SICCode        string
	SICDescription string

	Description string
	Exchange    string
	Currency    string
}

// Holding is a single ETF constituent row as reported by a provider,
// already ordered by descending weight.
type Holding struct {
	Symbol  string
	Name    string
	Percent float64 // 0-100
}

// Adapter fetches security metadata from one external source.
type Adapter interface {
	// Name returns the source identifier persisted alongside the data
	// (e.g. "yahoo", "alpha_vantage").
	Name() string
	// Conventions describes the units and taxonomy of raw records.
	Conventions() Conventions
	// Fetch retrieves the raw record for one symbol.
	Fetch(ctx context.Context, symbol string) (*Record, error)
}

// HoldingsProvider is implemented by adapters that can list ETF
// constituents.
type HoldingsProvider interface {
	Adapter
	// FetchHoldings returns the top constituents of an ETF, ordered by
	// descending weight.
	FetchHoldings(ctx context.Context, etfSymbol string) ([]Holding, error)
}

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind string

const (
	// KindRateLimited means the provider refused the request under its
	// quota. Retryable.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTimeout means the request timed out or the transport failed.
	// Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindNotFound means the provider has no data for the symbol.
	// Permanent.
	KindNotFound ErrorKind = "not_found"
	// KindMalformed means the response could not be decoded. Permanent.
	KindMalformed ErrorKind = "malformed"
)

// Error is a classified provider failure.
type Error struct {
	Kind   ErrorKind
	Source string
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Source, e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Source, e.Symbol, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified provider error.
func NewError(kind ErrorKind, source, symbol string, err error) *Error {
	return &Error{Kind: kind, Source: source, Symbol: symbol, Err: err}
}

// KindOf extracts the error kind, defaulting to KindTimeout for
// unclassified errors so transient transport failures stay retryable.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTimeout
}

// IsRetryable reports whether the failure may succeed on a later attempt.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

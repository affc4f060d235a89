// Package normalize converts provider-native records into canonical
// units and taxonomy. Everything here is a pure transform: the same
// input always yields the same patch, and nothing is written anywhere.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/internal/provider"
)

// ErrMissingSymbol is returned when a record carries no symbol and
// therefore cannot be attributed to any security.
var ErrMissingSymbol = errors.New("record has no symbol")

// Record converts a provider record into a canonical patch using the
// provider's declared conventions. Invalid field values are dropped
// and reported as warnings instead of being coerced to zero.
func Record(conv provider.Conventions, rec *provider.Record) (*contracts.SecurityPatch, []string, error) {
	if rec == nil {
		return nil, nil, errors.New("nil record")
	}

	symbol := strings.ToUpper(strings.TrimSpace(rec.Symbol))
	if symbol == "" {
		return nil, nil, ErrMissingSymbol
	}

	var warnings []string
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	patch := &contracts.SecurityPatch{
		Symbol:      symbol,
		Name:        strings.TrimSpace(rec.Name),
		AssetType:   strings.ToUpper(strings.TrimSpace(rec.AssetType)),
		Description: strings.TrimSpace(rec.Description),
		Exchange:    strings.ToUpper(strings.TrimSpace(rec.Exchange)),
		Currency:    strings.ToUpper(strings.TrimSpace(rec.Currency)),
	}

	patch.MarketCap = marketCapDollars(conv, rec.MarketCap)
	if rec.MarketCap != nil && patch.MarketCap == nil {
		warn("dropped negative market_cap %v", *rec.MarketCap)
	}

	patch.DividendYield = yieldPercent(conv, rec.DividendYield)
	if rec.DividendYield != nil && patch.DividendYield == nil {
		warn("dropped negative dividend_yield %v", *rec.DividendYield)
	}

	patch.CurrentPrice = nonNegative(rec.CurrentPrice)
	if rec.CurrentPrice != nil && patch.CurrentPrice == nil {
		warn("dropped negative current_price %v", *rec.CurrentPrice)
	}

	patch.ExpenseRatio = nonNegative(rec.ExpenseRatio)
	if rec.ExpenseRatio != nil && patch.ExpenseRatio == nil {
		warn("dropped negative expense_ratio %v", *rec.ExpenseRatio)
	}

	patch.Volume = nonNegativeInt(rec.Volume)
	if rec.Volume != nil && patch.Volume == nil {
		warn("dropped negative volume %v", *rec.Volume)
	}

	patch.AvgVolume = nonNegativeInt(rec.AvgVolume)
	if rec.AvgVolume != nil && patch.AvgVolume == nil {
		warn("dropped negative avg_volume %v", *rec.AvgVolume)
	}

	// Signed metrics pass through as-is.
	patch.PERatio = rec.PERatio
	patch.YearPerformance = rec.YearPerformance
	patch.FiftyTwoWeekHigh = rec.FiftyTwoWeekHigh
	patch.FiftyTwoWeekLow = rec.FiftyTwoWeekLow
	patch.Beta = rec.Beta

	routeTaxonomy(conv.Taxonomy, rec, patch)

	return patch, warnings, nil
}

// marketCapDollars converts market cap into plain dollars. Providers
// reporting in millions are scaled up; negatives are invalid.
func marketCapDollars(conv provider.Conventions, raw *float64) *float64 {
	if raw == nil || *raw < 0 {
		return nil
	}
	v := *raw
	if conv.MarketCapMillions {
		v *= 1_000_000
	}
	return &v
}

// yieldPercent converts dividend yield into percentage points. For a
// decimal-reporting provider a magnitude below 1 is treated as a
// fraction and scaled by 100; exactly 1.0 and above pass through
// unchanged. A security genuinely yielding under 1% from such a
// provider is indistinguishable from a fraction, so the scale wins.
func yieldPercent(conv provider.Conventions, raw *float64) *float64 {
	if raw == nil || *raw < 0 {
		return nil
	}
	v := *raw
	if conv.DividendYieldDecimal && v > 0 && v < 1 {
		v *= 100
	}
	return &v
}

// routeTaxonomy writes the provider's sector fields into the columns
// for its taxonomy, never into the derived sector/industry pair.
func routeTaxonomy(taxonomy provider.Taxonomy, rec *provider.Record, patch *contracts.SecurityPatch) {
	switch taxonomy {
	case provider.TaxonomyGICS:
		patch.GICSSector = strings.TrimSpace(rec.Sector)
		patch.GICSIndustry = strings.TrimSpace(rec.Industry)
	case provider.TaxonomySIC:
		patch.SICCode = strings.TrimSpace(rec.SICCode)
		patch.SICDescription = strings.TrimSpace(rec.SICDescription)
	case provider.TaxonomyAssetClass:
		patch.AssetClass = strings.TrimSpace(rec.Sector)
	}
}

func nonNegative(raw *float64) *float64 {
	if raw == nil || *raw < 0 {
		return nil
	}
	v := *raw
	return &v
}

func nonNegativeInt(raw *int64) *int64 {
	if raw == nil || *raw < 0 {
		return nil
	}
	v := *raw
	return &v
}

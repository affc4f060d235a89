package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portrec/portrec/internal/provider"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestRecordMissingSymbol(t *testing.T) {
	_, _, err := Record(provider.Conventions{}, &provider.Record{Name: "Unknown Corp"})
	assert.ErrorIs(t, err, ErrMissingSymbol)

	_, _, err = Record(provider.Conventions{}, &provider.Record{Symbol: "   "})
	assert.ErrorIs(t, err, ErrMissingSymbol)

	_, _, err = Record(provider.Conventions{}, nil)
	assert.Error(t, err)
}

func TestRecordAlphaVantageConventions(t *testing.T) {
	// Alpha Vantage reports market cap in dollars and yield as a
	// decimal fraction.
	conv := provider.Conventions{
		DividendYieldDecimal: true,
		Taxonomy:             provider.TaxonomyGICS,
	}
	rec := &provider.Record{
		Symbol:        "vti",
		Name:          "Vanguard Total Stock Market ETF",
		MarketCap:     f64(5_000_000),
		DividendYield: f64(0.025),
		Sector:        "Financial Services",
		Industry:      "Asset Management",
	}

	patch, warnings, err := Record(conv, rec)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "VTI", patch.Symbol)
	require.NotNil(t, patch.MarketCap)
	assert.Equal(t, 5_000_000.0, *patch.MarketCap)
	require.NotNil(t, patch.DividendYield)
	assert.InDelta(t, 2.5, *patch.DividendYield, 0.0001)
	assert.Equal(t, "Financial Services", patch.GICSSector)
	assert.Equal(t, "Asset Management", patch.GICSIndustry)
	assert.Empty(t, patch.AssetClass)
	assert.Empty(t, patch.SICCode)
}

func TestRecordMarketCapMillions(t *testing.T) {
	conv := provider.Conventions{MarketCapMillions: true, Taxonomy: provider.TaxonomyAssetClass}
	rec := &provider.Record{Symbol: "SPY", MarketCap: f64(1500)}

	patch, _, err := Record(conv, rec)
	require.NoError(t, err)
	require.NotNil(t, patch.MarketCap)
	assert.Equal(t, 1_500_000_000.0, *patch.MarketCap)
}

func TestYieldPercent(t *testing.T) {
	decimal := provider.Conventions{DividendYieldDecimal: true}
	percent := provider.Conventions{}

	tests := []struct {
		name string
		conv provider.Conventions
		in   float64
		want float64
	}{
		{"decimal fraction scaled", decimal, 0.025, 2.5},
		{"decimal just below one", decimal, 0.999, 99.9},
		{"decimal exactly one passes through", decimal, 1.0, 1.0},
		{"decimal above one passes through", decimal, 1.05, 1.05},
		{"decimal zero stays zero", decimal, 0, 0},
		{"percent provider untouched", percent, 0.4, 0.4},
		{"percent provider above one untouched", percent, 2.5, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := yieldPercent(tt.conv, &tt.in)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 0.0001)
		})
	}

	assert.Nil(t, yieldPercent(decimal, nil))
	neg := -0.5
	assert.Nil(t, yieldPercent(decimal, &neg))
}

func TestRecordUppercasesCodes(t *testing.T) {
	rec := &provider.Record{
		Symbol:   "aapl",
		Exchange: "nms",
		Currency: "usd",
	}

	patch, _, err := Record(provider.Conventions{Taxonomy: provider.TaxonomyGICS}, rec)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", patch.Symbol)
	assert.Equal(t, "NMS", patch.Exchange)
	assert.Equal(t, "USD", patch.Currency)
}

func TestRecordTaxonomyRouting(t *testing.T) {
	sic := &provider.Record{
		Symbol:         "AAPL",
		SICCode:        "3571",
		SICDescription: "Electronic Computers",
		Sector:         "should be ignored",
	}
	patch, _, err := Record(provider.Conventions{Taxonomy: provider.TaxonomySIC}, sic)
	require.NoError(t, err)
	assert.Equal(t, "3571", patch.SICCode)
	assert.Equal(t, "Electronic Computers", patch.SICDescription)
	assert.Empty(t, patch.GICSSector)
	assert.Empty(t, patch.AssetClass)

	fund := &provider.Record{Symbol: "AGG", Sector: "Bond"}
	patch, _, err = Record(provider.Conventions{Taxonomy: provider.TaxonomyAssetClass}, fund)
	require.NoError(t, err)
	assert.Equal(t, "Bond", patch.AssetClass)
	assert.Empty(t, patch.GICSSector)
}

func TestRecordDropsNegativeValues(t *testing.T) {
	rec := &provider.Record{
		Symbol:       "BAD",
		MarketCap:    f64(-1),
		CurrentPrice: f64(-3.5),
		Volume:       i64(-100),
	}

	patch, warnings, err := Record(provider.Conventions{}, rec)
	require.NoError(t, err)

	assert.Nil(t, patch.MarketCap)
	assert.Nil(t, patch.CurrentPrice)
	assert.Nil(t, patch.Volume)
	assert.Len(t, warnings, 3)
}

func TestRecordSignedMetricsPassThrough(t *testing.T) {
	rec := &provider.Record{
		Symbol:          "XOM",
		YearPerformance: f64(-12.4),
		Beta:            f64(-0.2),
	}

	patch, warnings, err := Record(provider.Conventions{}, rec)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.NotNil(t, patch.YearPerformance)
	assert.Equal(t, -12.4, *patch.YearPerformance)
	require.NotNil(t, patch.Beta)
	assert.Equal(t, -0.2, *patch.Beta)
}

package analyst

import (
	"strings"

	"github.com/portrec/portrec/internal/contracts"
)

// searchTable maps thesis vocabulary to the liquid ETFs most likely to
// hold matching securities. A heuristic until a real symbol-search
// endpoint is wired.
var searchTable = []struct {
	match   func(string) bool
	tickers []string
}{
	{matchAll("small", "cap"), []string{"IWM", "IJR", "SCHA", "VB", "SLYG", "SLYV", "VBR", "VBK"}},
	{matchAll("mid", "cap"), []string{"IJH", "MDY", "VO", "SCHM", "IWR", "VXF"}},
	{matchAny("tech", "technology"), []string{"XLK", "VGT", "QQQ", "QTEC", "SOXX", "IGV", "FDN"}},
	{matchAny("energy"), []string{"XLE", "VDE", "IYE", "FENY", "IXC", "PXE"}},
	{matchAny("health", "healthcare"), []string{"XLV", "VHT", "IYH", "FHLC", "IBB", "XBI"}},
	{matchAny("financial", "bank"), []string{"XLF", "VFH", "IYF", "KBE", "KRE", "IAT"}},
	{matchAny("dividend", "income"), []string{"VYM", "DVY", "SCHD", "HDV", "SDY", "DGRO", "VIG"}},
	{matchAny("value"), []string{"VTV", "IVE", "VOOV", "SCHV", "IWD", "VBR"}},
	{matchAny("growth"), []string{"VUG", "IVW", "VOOG", "SCHG", "IWF", "VBK"}},
	{matchAny("international", "emerging"), []string{"VEA", "IEFA", "VWO", "IEMG", "EEM", "VEU", "IXUS"}},
	{matchAny("real estate", "reit"), []string{"VNQ", "IYR", "SCHH", "XLRE", "RWR", "USRT"}},
}

var broadMarketTickers = []string{"SPY", "VOO", "VTI", "IVV", "QQQ", "DIA"}

// SearchTickers proposes candidate ETF tickers for a thesis from its
// title, description, and keywords. Falls back to broad-market funds
// when nothing in the thesis matches the table. Duplicates are removed
// preserving first-seen order.
func SearchTickers(thesis *contracts.Thesis) []string {
	if thesis == nil {
		return nil
	}

	parts := []string{thesis.Title, thesis.Description}
	parts = append(parts, thesis.Keywords...)
	query := strings.ToLower(strings.Join(parts, " "))

	var tickers []string
	for _, entry := range searchTable {
		if entry.match(query) {
			tickers = append(tickers, entry.tickers...)
		}
	}
	if len(tickers) == 0 {
		tickers = append(tickers, broadMarketTickers...)
	}

	seen := make(map[string]bool, len(tickers))
	out := tickers[:0]
	for _, t := range tickers {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func matchAll(words ...string) func(string) bool {
	return func(query string) bool {
		for _, w := range words {
			if !strings.Contains(query, w) {
				return false
			}
		}
		return true
	}
}

func matchAny(words ...string) func(string) bool {
	return func(query string) bool {
		for _, w := range words {
			if strings.Contains(query, w) {
				return true
			}
		}
		return false
	}
}

// Package analyst scores securities against investment theses and
// reports how each score was earned.
package analyst

import (
	"fmt"
	"strings"

	"github.com/portrec/portrec/internal/contracts"
)

// Score rates how well a security fits a thesis on a 0-100 scale and
// explains which criteria fired. Five independently capped criteria:
// sector match (30), keyword match (25), market-cap fit (15),
// performance (15), dividend yield (15).
func Score(sec *contracts.Security, thesis *contracts.Thesis) (int, string) {
	score := 0
	var parts []string

	desc := strings.ToLower(thesis.Description)

	if sectorMatch(sec, thesis.Sectors) {
		score += 30
		parts = append(parts, fmt.Sprintf("Sector match: %s", sec.Sector))
	}

	if matched := keywordMatches(sec, thesis.Keywords); len(matched) > 0 {
		points := len(matched) * 8
		if points > 25 {
			points = 25
		}
		score += points
		shown := matched
		if len(shown) > 3 {
			shown = shown[:3]
		}
		parts = append(parts, fmt.Sprintf("Keywords matched: %s", strings.Join(shown, ", ")))
	}

	if points, reason := marketCapFit(sec.MarketCap, desc); points > 0 {
		score += points
		parts = append(parts, reason)
	}

	if sec.YearPerformance != nil {
		perf := *sec.YearPerformance
		if strings.Contains(desc, "growth") && perf > 15 {
			score += 10
			parts = append(parts, fmt.Sprintf("Strong growth: %.1f%%", perf))
		} else if strings.Contains(desc, "value") && perf < 5 {
			score += 10
			parts = append(parts, fmt.Sprintf("Value opportunity: %.1f%%", perf))
		}
	}

	if sec.DividendYield != nil && *sec.DividendYield > 2.0 {
		if strings.Contains(desc, "dividend") || strings.Contains(desc, "income") {
			score += 15
			parts = append(parts, fmt.Sprintf("Dividend yield: %.2f%%", *sec.DividendYield))
		}
	}

	if len(parts) == 0 {
		return score, "Limited alignment detected"
	}
	return score, strings.Join(parts, "; ")
}

func sectorMatch(sec *contracts.Security, sectors []string) bool {
	secSector := strings.ToLower(sec.Sector)
	secIndustry := strings.ToLower(sec.Industry)
	for _, s := range sectors {
		s = strings.ToLower(s)
		if s == "" {
			continue
		}
		if strings.Contains(secSector, s) || strings.Contains(secIndustry, s) {
			return true
		}
	}
	return false
}

func keywordMatches(sec *contracts.Security, keywords []string) []string {
	text := strings.ToLower(sec.Name + " " + sec.Description)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func marketCapFit(marketCap *float64, desc string) (int, string) {
	if marketCap == nil {
		return 0, ""
	}
	mc := *marketCap
	switch {
	case strings.Contains(desc, "small cap") || strings.Contains(desc, "small-cap"):
		if mc < 2_000_000_000 {
			return 15, "Small-cap fit"
		}
	case strings.Contains(desc, "mid cap") || strings.Contains(desc, "mid-cap"):
		if mc >= 2_000_000_000 && mc <= 10_000_000_000 {
			return 15, "Mid-cap fit"
		}
	case strings.Contains(desc, "large cap") || strings.Contains(desc, "large-cap"):
		if mc > 10_000_000_000 {
			return 15, "Large-cap fit"
		}
	}
	return 0, ""
}

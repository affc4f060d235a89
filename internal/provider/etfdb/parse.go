package etfdb

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAssets converts a screener assets cell into millions of dollars,
// the unit ETFDB reports. Plain numbers are already millions; K/M/B
// suffixed values are scaled accordingly ("$1.5B" is 1500 millions).
func ParseAssets(value string) (*float64, error) {
	cleaned := cleanNumeric(value)
	if cleaned == "" {
		return nil, nil
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "B"):
		multiplier = 1000
		cleaned = strings.TrimSuffix(cleaned, "B")
	case strings.HasSuffix(cleaned, "M"):
		cleaned = strings.TrimSuffix(cleaned, "M")
	case strings.HasSuffix(cleaned, "K"):
		multiplier = 0.001
		cleaned = strings.TrimSuffix(cleaned, "K")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("parse assets %q: %w", value, err)
	}

	result := f * multiplier
	return &result, nil
}

// ParseNumber converts a plain numeric cell, stripping currency symbols
// and thousands separators. Empty and "N/A" cells are absent, not zero.
func ParseNumber(value string) (*float64, error) {
	cleaned := cleanNumeric(value)
	if cleaned == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", value, err)
	}

	return &f, nil
}

// ParsePercent converts a percent cell ("12.5%") into percentage points.
func ParsePercent(value string) (*float64, error) {
	cleaned := strings.TrimSuffix(cleanNumeric(value), "%")
	if cleaned == "" {
		return nil, nil
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("parse percent %q: %w", value, err)
	}

	return &f, nil
}

func cleanNumeric(value string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.EqualFold(cleaned, "N/A") || cleaned == "--" || cleaned == "-" {
		return ""
	}

	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))
	return cleaned
}

package analyst

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/portrec/portrec/internal/contracts"
)

func TestSearchTickers(t *testing.T) {
	tests := []struct {
		name        string
		thesis      *contracts.Thesis
		want        []string
		wantAbsent  []string
		exactlyWant bool
	}{
		{
			name: "technology thesis",
			thesis: &contracts.Thesis{
				Title:       "AI Infrastructure",
				Description: "Technology companies building AI compute",
			},
			want:       []string{"XLK", "QQQ", "SOXX"},
			wantAbsent: []string{"XLE", "SPY"},
		},
		{
			name: "small cap value",
			thesis: &contracts.Thesis{
				Title:       "Small Cap Value",
				Description: "Undervalued small cap names",
			},
			want:       []string{"IWM", "VTV"},
			wantAbsent: []string{"QQQ"},
		},
		{
			name: "income from keywords",
			thesis: &contracts.Thesis{
				Title:    "Steady Payers",
				Keywords: []string{"dividend", "cash flow"},
			},
			want:       []string{"VYM", "SCHD"},
			wantAbsent: []string{"XLK"},
		},
		{
			name:        "no match falls back to broad market",
			thesis:      &contracts.Thesis{Title: "Frontier Robotics"},
			want:        []string{"SPY", "VOO", "VTI", "IVV", "QQQ", "DIA"},
			exactlyWant: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchTickers(tt.thesis)
			if tt.exactlyWant {
				assert.Equal(t, tt.want, got)
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.wantAbsent {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func TestSearchTickersDeduplicates(t *testing.T) {
	// VBR sits in both the small-cap and value lists.
	thesis := &contracts.Thesis{Title: "Small Cap Value"}
	got := SearchTickers(thesis)

	seen := make(map[string]int)
	for _, tk := range got {
		seen[tk]++
	}
	assert.Equal(t, 1, seen["VBR"])
}

func TestSearchTickersNilThesis(t *testing.T) {
	assert.Nil(t, SearchTickers(nil))
}

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeAssignment(t *testing.T) {
	tests := []struct {
		name   string
		column string
		rule   mergeRule
		want   string
	}{
		{
			name:   "fill if missing keeps the stored value",
			column: "gics_sector",
			rule:   fillIfMissing,
			want:   "gics_sector = COALESCE(securities.gics_sector, EXCLUDED.gics_sector)",
		},
		{
			name:   "always refresh takes the incoming value",
			column: "current_price",
			rule:   alwaysRefresh,
			want:   "current_price = COALESCE(EXCLUDED.current_price, securities.current_price)",
		},
		{
			name:   "null input never clears a refreshed column",
			column: "volume",
			rule:   alwaysRefresh,
			want:   "volume = COALESCE(EXCLUDED.volume, securities.volume)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeAssignment(tt.column, tt.rule))
		})
	}
}

func TestMergePolicyClassification(t *testing.T) {
	refreshed := map[string]bool{
		"current_price":    true,
		"volume":           true,
		"year_performance": true,
	}

	seen := make(map[string]bool, len(mergePolicy))
	for _, p := range mergePolicy {
		assert.False(t, seen[p.column], "column %s classified twice", p.column)
		seen[p.column] = true

		if refreshed[p.column] {
			assert.Equal(t, alwaysRefresh, p.rule, "column %s must always refresh", p.column)
		} else {
			assert.Equal(t, fillIfMissing, p.rule, "column %s must fill only when missing", p.column)
		}
	}
	for column := range refreshed {
		assert.True(t, seen[column], "column %s missing from the merge policy", column)
	}

	// Handled by dedicated clauses, never by the generic policy.
	for _, special := range []string{"symbol", "name", "sector", "industry", "last_updated"} {
		assert.False(t, seen[special], "column %s belongs to a dedicated clause", special)
	}
}

func TestUpsertQueryMergeClause(t *testing.T) {
	_, clause, found := strings.Cut(upsertQuery, "DO UPDATE SET")
	require.True(t, found)

	// Replaying a patch cannot change a stored non-null classification
	// value: the stored side is the first COALESCE argument.
	for _, p := range mergePolicy {
		assert.Contains(t, clause, mergeAssignment(p.column, p.rule))
	}

	// A stored name that just echoes the symbol counts as missing.
	assert.Contains(t, clause, "securities.name = securities.symbol")

	// Derived columns are recomputed from the merged taxonomy columns.
	assert.Contains(t, clause, "securities.gics_sector, EXCLUDED.gics_sector")
	assert.Contains(t, clause, "securities.asset_class, EXCLUDED.asset_class")

	assert.Contains(t, clause, "last_updated = NOW()")

	// Never write the derived sector column straight from the input.
	assert.NotContains(t, clause, "sector = EXCLUDED.sector")
}

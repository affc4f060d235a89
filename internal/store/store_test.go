package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"not null violation", &pgconn.PgError{Code: "23502"}, false},
		{"wrapped conflict", fmt.Errorf("upsert: %w", &pgconn.PgError{Code: "40001"}), true},
		{"plain error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isWriteConflict(tt.err))
		})
	}
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	assert.Nil(t, nullString("   "))

	got := nullString(" NYSE ")
	if assert.NotNil(t, got) {
		assert.Equal(t, "NYSE", *got)
	}
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "", deref(nil))
	s := "Technology"
	assert.Equal(t, "Technology", deref(&s))
}

func TestEmptyIfNil(t *testing.T) {
	assert.Equal(t, []string{}, emptyIfNil(nil))
	assert.Equal(t, []string{"ai"}, emptyIfNil([]string{"ai"}))
}

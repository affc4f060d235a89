package contracts

import (
	"context"
)

// Repository interfaces are defined here and implemented by the store
// package; the orchestrator and analyst depend only on these.

// SecurityRepository manages canonical security rows.
type SecurityRepository interface {
	// Get returns the stored row, or nil when the symbol is unknown.
	Get(ctx context.Context, symbol string) (*Security, error)
	// Upsert merges a source's patch into the canonical row and
	// returns the post-merge state.
	Upsert(ctx context.Context, patch *SecurityPatch, source string) (*Security, error)
	// EnsurePlaceholder inserts a minimal row for a referenced symbol
	// without disturbing an existing one.
	EnsurePlaceholder(ctx context.Context, symbol, name string) error
	// ListSymbols returns all symbols of the given asset type,
	// alphabetically.
	ListSymbols(ctx context.Context, assetType string) ([]string, error)
}

// HoldingsRepository manages per-(etf, source) holdings snapshots.
type HoldingsRepository interface {
	// ReplaceSnapshot atomically replaces the (etf, source) snapshot
	// with the given constituents, ranked 1..N in input order.
	ReplaceSnapshot(ctx context.Context, etfSymbol, source string, holdings []Holding) error
	// GetByETF returns the stored snapshot rows for an ETF, rank order.
	GetByETF(ctx context.Context, etfSymbol string) ([]Holding, error)
	// ConstituentSymbols returns the distinct constituents across all
	// snapshots, alphabetically.
	ConstituentSymbols(ctx context.Context) ([]string, error)
	// UnenrichedConstituents returns constituents whose security rows
	// are still placeholders, alphabetically.
	UnenrichedConstituents(ctx context.Context) ([]string, error)
}

// BackfillStateRepository manages durable backfill progress.
type BackfillStateRepository interface {
	// EnsureTracked inserts pending state rows for any untracked
	// symbols of the task kind.
	EnsureTracked(ctx context.Context, symbols []string, kind TaskKind) error
	// ResetInProgress returns crashed in_progress rows to pending and
	// reports how many were reset.
	ResetInProgress(ctx context.Context, kind TaskKind) (int, error)
	// Claim atomically moves an eligible row to in_progress. Returns
	// false when the row is not claimable (already taken, done, or
	// permanently failed).
	Claim(ctx context.Context, symbol string, kind TaskKind, forceRefresh bool) (bool, error)
	// MarkDone records successful completion. Called only after the
	// fetched data has been committed.
	MarkDone(ctx context.Context, symbol string, kind TaskKind) error
	// MarkFailed records a failure with its class and message.
	MarkFailed(ctx context.Context, symbol string, kind TaskKind, status BackfillStatus, reason string) error
	// Release returns a claimed row to pending without counting an
	// attempt, for budget-exhausted symbols.
	Release(ctx context.Context, symbol string, kind TaskKind) error
	// Get returns the state row, or nil when untracked.
	Get(ctx context.Context, symbol string, kind TaskKind) (*BackfillState, error)
	// Counts summarizes progress for one task kind.
	Counts(ctx context.Context, kind TaskKind) (*BackfillCounts, error)
}

// ThesisRepository manages theses and their alignment results.
type ThesisRepository interface {
	Import(ctx context.Context, theses []*Thesis) (int, error)
	List(ctx context.Context, selectedOnly bool) ([]*Thesis, error)
	Get(ctx context.Context, id int64) (*Thesis, error)
	SetSelected(ctx context.Context, id int64, selected bool) error
	SetPriority(ctx context.Context, id int64, priority int) error
	SaveAlignment(ctx context.Context, alignment *Alignment) error
	ListAlignments(ctx context.Context, thesisID int64, limit int) ([]*Alignment, error)
}

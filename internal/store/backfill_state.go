package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// BackfillStateRepository persists the per-(symbol, task) progress
// rows that make backfill runs resumable.
type BackfillStateRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewBackfillStateRepository creates a new BackfillStateRepository instance.
func NewBackfillStateRepository(db *pgxpool.Pool, log *logger.Logger) *BackfillStateRepository {
	return &BackfillStateRepository{db: db, logger: log}
}

// EnsureTracked inserts pending rows for any untracked symbols.
// Already-tracked symbols keep their state.
func (r *BackfillStateRepository) EnsureTracked(ctx context.Context, symbols []string, kind contracts.TaskKind) error {
	query := `
		INSERT INTO backfill_state (symbol, task_kind, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (symbol, task_kind) DO NOTHING
	`

	for _, symbol := range symbols {
		if _, err := r.db.Exec(ctx, query, symbol, kind); err != nil {
			return fmt.Errorf("track %s/%s: %w", symbol, kind, err)
		}
	}

	return nil
}

// ResetInProgress returns crashed in_progress rows to pending. Run at
// startup: an in_progress row with no live worker is crash evidence,
// and the data write either committed or didn't, so re-fetching is
// safe.
func (r *BackfillStateRepository) ResetInProgress(ctx context.Context, kind contracts.TaskKind) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE backfill_state
		SET status = 'pending'
		WHERE task_kind = $1 AND status = 'in_progress'
	`, kind)
	if err != nil {
		return 0, fmt.Errorf("reset in_progress: %w", err)
	}

	reset := int(tag.RowsAffected())
	if reset > 0 {
		r.logger.WithFields(map[string]interface{}{
			"task_kind": kind,
			"count":     reset,
		}).Warn("Reset interrupted backfill rows to pending")
	}

	return reset, nil
}

// Claim atomically moves an eligible row to in_progress. The status
// guard in the WHERE clause guarantees at most one worker holds a
// (symbol, task) at a time.
func (r *BackfillStateRepository) Claim(ctx context.Context, symbol string, kind contracts.TaskKind, forceRefresh bool) (bool, error) {
	eligible := `('pending', 'failed_retryable')`
	if forceRefresh {
		eligible = `('pending', 'failed_retryable', 'done')`
	}

	query := fmt.Sprintf(`
		UPDATE backfill_state
		SET status = 'in_progress', attempts = attempts + 1, last_attempt = NOW()
		WHERE symbol = $1 AND task_kind = $2 AND status IN %s
	`, eligible)

	tag, err := r.db.Exec(ctx, query, symbol, kind)
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", symbol, kind, err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkDone records completion. Callers commit the fetched data first,
// so a crash between the two writes re-runs the symbol rather than
// losing it.
func (r *BackfillStateRepository) MarkDone(ctx context.Context, symbol string, kind contracts.TaskKind) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE backfill_state
		SET status = 'done', last_error = NULL
		WHERE symbol = $1 AND task_kind = $2
	`, symbol, kind); err != nil {
		return fmt.Errorf("mark done %s/%s: %w", symbol, kind, err)
	}
	return nil
}

// MarkFailed records a classified failure.
func (r *BackfillStateRepository) MarkFailed(ctx context.Context, symbol string, kind contracts.TaskKind, status contracts.BackfillStatus, reason string) error {
	if status != contracts.StatusFailedRetryable && status != contracts.StatusFailedPermanent {
		return fmt.Errorf("mark failed %s/%s: invalid status %s", symbol, kind, status)
	}

	if _, err := r.db.Exec(ctx, `
		UPDATE backfill_state
		SET status = $3, last_error = $4
		WHERE symbol = $1 AND task_kind = $2
	`, symbol, kind, status, reason); err != nil {
		return fmt.Errorf("mark failed %s/%s: %w", symbol, kind, err)
	}
	return nil
}

// Release returns a claimed row to pending without recording a
// failure, for symbols skipped when a provider budget runs out.
func (r *BackfillStateRepository) Release(ctx context.Context, symbol string, kind contracts.TaskKind) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE backfill_state
		SET status = 'pending', attempts = attempts - 1
		WHERE symbol = $1 AND task_kind = $2 AND status = 'in_progress'
	`, symbol, kind); err != nil {
		return fmt.Errorf("release %s/%s: %w", symbol, kind, err)
	}
	return nil
}

// Get returns the state row, or nil when untracked.
func (r *BackfillStateRepository) Get(ctx context.Context, symbol string, kind contracts.TaskKind) (*contracts.BackfillState, error) {
	var state contracts.BackfillState
	var lastAttempt *time.Time
	var lastError *string

	err := r.db.QueryRow(ctx, `
		SELECT symbol, task_kind, status, attempts, last_attempt, last_error
		FROM backfill_state
		WHERE symbol = $1 AND task_kind = $2
	`, symbol, kind).Scan(
		&state.Symbol, &state.TaskKind, &state.Status,
		&state.Attempts, &lastAttempt, &lastError,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query state %s/%s: %w", symbol, kind, err)
	}

	if lastAttempt != nil {
		state.LastAttempt = *lastAttempt
	}
	if lastError != nil {
		state.LastError = *lastError
	}

	return &state, nil
}

// Counts summarizes progress for one task kind.
func (r *BackfillStateRepository) Counts(ctx context.Context, kind contracts.TaskKind) (*contracts.BackfillCounts, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*)
		FROM backfill_state
		WHERE task_kind = $1
		GROUP BY status
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("count states: %w", err)
	}
	defer rows.Close()

	counts := &contracts.BackfillCounts{TaskKind: kind}
	for rows.Next() {
		var status contracts.BackfillStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}

		switch status {
		case contracts.StatusPending:
			counts.Pending = n
		case contracts.StatusInProgress:
			counts.InProgress = n
		case contracts.StatusDone:
			counts.Done = n
		case contracts.StatusFailedRetryable:
			counts.FailedRetryable = n
		case contracts.StatusFailedPermanent:
			counts.FailedPermanent = n
		}
	}

	return counts, rows.Err()
}

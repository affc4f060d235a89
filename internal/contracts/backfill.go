package contracts

import (
	"time"
)

// TaskKind identifies an independent backfill track for a symbol.
type TaskKind string

const (
	// TaskETFMetadata covers ETF metadata plus its holdings snapshot.
	TaskETFMetadata TaskKind = "etf_metadata"
	// TaskConstituentEnrich covers metadata enrichment of symbols
	// discovered as ETF constituents.
	TaskConstituentEnrich TaskKind = "constituent_enrich"
)

// BackfillStatus is the lifecycle state of one (symbol, task) pair.
type BackfillStatus string

const (
	StatusPending         BackfillStatus = "pending"
	StatusInProgress      BackfillStatus = "in_progress"
	StatusDone            BackfillStatus = "done"
	StatusFailedRetryable BackfillStatus = "failed_retryable"
	StatusFailedPermanent BackfillStatus = "failed_permanent"
)

// Claimable reports whether a worker may atomically claim this state
// for processing. forceRefresh additionally re-queues finished rows.
func (s BackfillStatus) Claimable(forceRefresh bool) bool {
	switch s {
	case StatusPending, StatusFailedRetryable:
		return true
	case StatusDone:
		return forceRefresh
	default:
		return false
	}
}

// Terminal reports whether the state needs no further work this run.
func (s BackfillStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailedPermanent
}

// BackfillState is the persisted progress row for one (symbol, task).
type BackfillState struct {
	Symbol      string         `json:"symbol"`
	TaskKind    TaskKind       `json:"task_kind"`
	Status      BackfillStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	LastAttempt time.Time      `json:"last_attempt"`
	LastError   string         `json:"last_error,omitempty"`
}

// BackfillCounts summarizes a task kind's progress.
type BackfillCounts struct {
	TaskKind        TaskKind
	Pending         int
	InProgress      int
	Done            int
	FailedRetryable int
	FailedPermanent int
}

// Total returns the number of tracked symbols for the task kind.
func (c BackfillCounts) Total() int {
	return c.Pending + c.InProgress + c.Done + c.FailedRetryable + c.FailedPermanent
}

// Remaining returns the symbols that still need work.
func (c BackfillCounts) Remaining() int {
	return c.Pending + c.InProgress + c.FailedRetryable
}

// Progress returns completion as a 0-100 percentage.
func (c BackfillCounts) Progress() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Done) / float64(total) * 100
}

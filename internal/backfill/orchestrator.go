// Package backfill drives providers over a symbol universe, tracking
// durable per-symbol state so interrupted runs resume where they
// stopped instead of starting over.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/internal/normalize"
	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/logger"
)

// Orchestrator runs one backfill task kind against one provider.
type Orchestrator struct {
	adapter    provider.Adapter
	securities contracts.SecurityRepository
	holdings   contracts.HoldingsRepository
	state      contracts.BackfillStateRepository
	gate       *Gate
	logger     *logger.Logger

	maxAttempts  int
	workers      int
	stalenessTTL time.Duration
}

// Config holds orchestrator tuning.
type Config struct {
	Workers     int
	MaxAttempts int
	// StalenessTTL lets enriched rows younger than the TTL complete
	// without a provider call. Zero disables the shortcut.
	StalenessTTL time.Duration
}

// NewOrchestrator creates an Orchestrator driving the given adapter.
func NewOrchestrator(
	adapter provider.Adapter,
	securities contracts.SecurityRepository,
	holdings contracts.HoldingsRepository,
	state contracts.BackfillStateRepository,
	gate *Gate,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Orchestrator{
		adapter:      adapter,
		securities:   securities,
		holdings:     holdings,
		state:        state,
		gate:         gate,
		logger:       log.WithField("module", "backfill"),
		maxAttempts:  maxAttempts,
		workers:      workers,
		stalenessTTL: cfg.StalenessTTL,
	}
}

// Options selects per-run behavior.
type Options struct {
	// ForceRefresh treats done symbols as pending for this run only.
	ForceRefresh bool
}

// Summary reports what one run accomplished.
type Summary struct {
	Processed       int
	Done            int
	FailedRetryable int
	FailedPermanent int
	Skipped         int
	Remaining       int
	BudgetExhausted bool
}

func (s *Summary) String() string {
	return fmt.Sprintf("done=%d failed_retryable=%d failed_permanent=%d skipped=%d remaining=%d",
		s.Done, s.FailedRetryable, s.FailedPermanent, s.Skipped, s.Remaining)
}

type symbolResult struct {
	symbol string
	status contracts.BackfillStatus
	// skipped symbols were not claimable or were left pending by an
	// exhausted budget.
	skipped bool
}

// Run processes every claimable symbol of the universe in alphabetical
// order. Per-symbol failures never abort the run; only an exhausted
// provider budget or cancellation ends it early, leaving untouched
// symbols pending.
func (o *Orchestrator) Run(ctx context.Context, symbols []string, kind contracts.TaskKind, opts Options) (*Summary, error) {
	universe := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			universe = append(universe, s)
		}
	}
	sort.Strings(universe)

	if err := o.state.EnsureTracked(ctx, universe, kind); err != nil {
		return nil, fmt.Errorf("ensure tracked: %w", err)
	}

	reset, err := o.state.ResetInProgress(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("reset in-progress: %w", err)
	}
	if reset > 0 {
		o.logger.WithField("count", reset).Warn("Reset interrupted symbols to pending")
	}

	o.logger.WithFields(map[string]interface{}{
		"task_kind":     string(kind),
		"source":        o.adapter.Name(),
		"symbol_count":  len(universe),
		"workers":       o.workers,
		"force_refresh": opts.ForceRefresh,
	}).Info("Starting backfill run")

	var halted haltFlag
	symbolCh := make(chan string, len(universe))
	resultCh := make(chan symbolResult, len(universe))

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			o.worker(ctx, workerID, kind, opts, &halted, symbolCh, resultCh)
		}(i)
	}

	for _, symbol := range universe {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	summary := &Summary{}
	for result := range resultCh {
		summary.Processed++
		if result.skipped {
			summary.Skipped++
			continue
		}
		switch result.status {
		case contracts.StatusDone:
			summary.Done++
		case contracts.StatusFailedRetryable:
			summary.FailedRetryable++
		case contracts.StatusFailedPermanent:
			summary.FailedPermanent++
		}
	}
	summary.BudgetExhausted = halted.isSet()

	if counts, err := o.state.Counts(ctx, kind); err == nil {
		summary.Remaining = counts.Remaining()
	}

	o.logger.WithFields(map[string]interface{}{
		"task_kind": string(kind),
		"summary":   summary.String(),
	}).Info("Backfill run completed")

	return summary, nil
}

// worker claims and processes symbols until the channel drains, the
// budget runs out, or the context is cancelled. Cancellation is only
// observed between symbols so an in-flight write always completes.
func (o *Orchestrator) worker(ctx context.Context, workerID int, kind contracts.TaskKind, opts Options, halted *haltFlag, symbolCh <-chan string, resultCh chan<- symbolResult) {
	log := o.logger.WithField("worker", workerID)

	for symbol := range symbolCh {
		if ctx.Err() != nil || halted.isSet() {
			resultCh <- symbolResult{symbol: symbol, skipped: true}
			continue
		}

		claimed, err := o.state.Claim(ctx, symbol, kind, opts.ForceRefresh)
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Error("Failed to claim symbol")
			resultCh <- symbolResult{symbol: symbol, skipped: true}
			continue
		}
		if !claimed {
			resultCh <- symbolResult{symbol: symbol, skipped: true}
			continue
		}

		if !opts.ForceRefresh && o.fresh(ctx, symbol) {
			if err := o.state.MarkDone(ctx, symbol, kind); err != nil {
				log.WithError(err).WithField("symbol", symbol).Error("Failed to mark symbol done")
				resultCh <- symbolResult{symbol: symbol, status: contracts.StatusFailedRetryable}
				continue
			}
			log.WithField("symbol", symbol).Debug("Stored row is fresh, skipping fetch")
			resultCh <- symbolResult{symbol: symbol, status: contracts.StatusDone}
			continue
		}

		if err := o.gate.Acquire(ctx); err != nil {
			if errors.Is(err, ErrBudgetExhausted) {
				halted.set()
				if relErr := o.state.Release(ctx, symbol, kind); relErr != nil {
					log.WithError(relErr).WithField("symbol", symbol).Error("Failed to release symbol")
				}
				log.WithField("symbol", symbol).Warn("Provider budget exhausted, halting run")
				resultCh <- symbolResult{symbol: symbol, skipped: true}
				continue
			}
			resultCh <- symbolResult{symbol: symbol, status: o.fail(ctx, symbol, kind, contracts.StatusFailedRetryable, err, log)}
			continue
		}

		status, skipped := o.process(ctx, symbol, kind, halted, log)
		resultCh <- symbolResult{symbol: symbol, status: status, skipped: skipped}
	}
}

// fresh reports whether the stored row already satisfies this task so
// the claim can complete without spending a provider call.
func (o *Orchestrator) fresh(ctx context.Context, symbol string) bool {
	if o.stalenessTTL <= 0 {
		return false
	}
	sec, err := o.securities.Get(ctx, symbol)
	if err != nil || sec == nil {
		return false
	}
	return sec.IsEnriched() && !sec.IsStale(o.stalenessTTL, time.Now())
}

// process runs the fetch, normalize, and persist pipeline for one
// claimed symbol and records the terminal state for this attempt. The
// skipped return means the budget ran out mid-symbol and the claim was
// released, not failed.
func (o *Orchestrator) process(ctx context.Context, symbol string, kind contracts.TaskKind, halted *haltFlag, log *logger.Logger) (contracts.BackfillStatus, bool) {
	rec, err := o.adapter.Fetch(ctx, symbol)
	if err != nil {
		return o.fail(ctx, symbol, kind, classify(err), err, log), false
	}

	patch, warnings, err := normalize.Record(o.adapter.Conventions(), rec)
	if err != nil {
		return o.fail(ctx, symbol, kind, contracts.StatusFailedPermanent, err, log), false
	}
	for _, w := range warnings {
		log.WithFields(map[string]interface{}{
			"symbol": symbol,
			"source": o.adapter.Name(),
		}).Warnf("Normalization: %s", w)
	}

	sec, err := o.securities.Upsert(ctx, patch, o.adapter.Name())
	if err != nil {
		return o.fail(ctx, symbol, kind, contracts.StatusFailedRetryable, err, log), false
	}

	if kind == contracts.TaskETFMetadata {
		if err := o.saveHoldings(ctx, sec, log); err != nil {
			// Budget exhaustion between the metadata and holdings
			// fetches is not a symbol failure. The metadata upsert is
			// idempotent, so release the claim and let the next run
			// redo the whole symbol.
			if errors.Is(err, ErrBudgetExhausted) {
				halted.set()
				if relErr := o.state.Release(ctx, symbol, kind); relErr != nil {
					log.WithError(relErr).WithField("symbol", symbol).Error("Failed to release symbol")
				}
				log.WithField("symbol", symbol).Warn("Provider budget exhausted before holdings fetch, halting run")
				return "", true
			}
			return o.fail(ctx, symbol, kind, classify(err), err, log), false
		}
	}

	if err := o.state.MarkDone(ctx, symbol, kind); err != nil {
		log.WithError(err).WithField("symbol", symbol).Error("Failed to mark symbol done")
		return contracts.StatusFailedRetryable, false
	}

	log.WithFields(map[string]interface{}{
		"symbol": symbol,
		"source": o.adapter.Name(),
	}).Debug("Backfilled symbol")
	return contracts.StatusDone, false
}

// saveHoldings fetches and stores the constituent snapshot when the
// provider supports holdings and the security is a fund.
func (o *Orchestrator) saveHoldings(ctx context.Context, sec *contracts.Security, log *logger.Logger) error {
	hp, ok := o.adapter.(provider.HoldingsProvider)
	if !ok || sec == nil {
		return nil
	}
	if sec.AssetType != "ETF" && sec.AssetType != "MUTUALFUND" {
		return nil
	}

	if err := o.gate.Acquire(ctx); err != nil {
		return err
	}

	raw, err := hp.FetchHoldings(ctx, sec.Symbol)
	if err != nil {
		// A fund with no published holdings is not a failure.
		if provider.KindOf(err) == provider.KindNotFound {
			return nil
		}
		return err
	}

	holdings := make([]contracts.Holding, 0, len(raw))
	for _, h := range raw {
		holdings = append(holdings, contracts.Holding{
			ConstituentSymbol: strings.ToUpper(h.Symbol),
			Name:              h.Name,
			HoldingPercent:    h.Percent,
		})
	}

	if err := o.holdings.ReplaceSnapshot(ctx, sec.Symbol, o.adapter.Name(), holdings); err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"etf":   sec.Symbol,
		"count": len(holdings),
	}).Debug("Replaced holdings snapshot")
	return nil
}

// fail records a failure, downgrading retryable to permanent once the
// attempt budget is spent.
func (o *Orchestrator) fail(ctx context.Context, symbol string, kind contracts.TaskKind, status contracts.BackfillStatus, cause error, log *logger.Logger) contracts.BackfillStatus {
	if status == contracts.StatusFailedRetryable {
		if state, err := o.state.Get(ctx, symbol, kind); err == nil && state != nil && state.Attempts >= o.maxAttempts {
			status = contracts.StatusFailedPermanent
		}
	}

	reason := cause.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	if err := o.state.MarkFailed(ctx, symbol, kind, status, reason); err != nil {
		log.WithError(err).WithField("symbol", symbol).Error("Failed to record failure")
	}

	log.WithError(cause).WithFields(map[string]interface{}{
		"symbol": symbol,
		"status": string(status),
	}).Warn("Symbol backfill failed")
	return status
}

// classify maps a provider error to the failure state it deserves.
// Unclassified errors are assumed transient.
func classify(err error) contracts.BackfillStatus {
	switch provider.KindOf(err) {
	case provider.KindNotFound, provider.KindMalformed:
		return contracts.StatusFailedPermanent
	default:
		return contracts.StatusFailedRetryable
	}
}

type haltFlag struct {
	mu     sync.Mutex
	halted bool
}

func (h *haltFlag) set() {
	h.mu.Lock()
	h.halted = true
	h.mu.Unlock()
}

func (h *haltFlag) isSet() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.halted
}

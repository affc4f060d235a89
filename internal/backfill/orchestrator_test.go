package backfill

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/logger"
)

type fakeAdapter struct {
	mu       sync.Mutex
	records  map[string]*provider.Record
	errs     map[string]error
	holdings map[string][]provider.Holding
	fetches  int
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Conventions() provider.Conventions {
	return provider.Conventions{Taxonomy: provider.TaxonomyGICS}
}

func (f *fakeAdapter) Fetch(ctx context.Context, symbol string) (*provider.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	if rec, ok := f.records[symbol]; ok {
		return rec, nil
	}
	return nil, provider.NewError(provider.KindNotFound, "fake", symbol, fmt.Errorf("no such symbol"))
}

func (f *fakeAdapter) FetchHoldings(ctx context.Context, symbol string) ([]provider.Holding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.holdings[symbol]; ok {
		return h, nil
	}
	return nil, provider.NewError(provider.KindNotFound, "fake", symbol, fmt.Errorf("no holdings"))
}

type fakeSecurities struct {
	mu      sync.Mutex
	rows    map[string]*contracts.Security
	upserts map[string]int
}

func newFakeSecurities() *fakeSecurities {
	return &fakeSecurities{
		rows:    make(map[string]*contracts.Security),
		upserts: make(map[string]int),
	}
}

func (f *fakeSecurities) Get(ctx context.Context, symbol string) (*contracts.Security, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[symbol], nil
}

func (f *fakeSecurities) Upsert(ctx context.Context, patch *contracts.SecurityPatch, source string) (*contracts.Security, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[patch.Symbol]++
	return &contracts.Security{Symbol: patch.Symbol, AssetType: patch.AssetType}, nil
}

func (f *fakeSecurities) EnsurePlaceholder(ctx context.Context, symbol, name string) error {
	return nil
}

func (f *fakeSecurities) ListSymbols(ctx context.Context, assetType string) ([]string, error) {
	return nil, nil
}

type fakeHoldings struct {
	mu        sync.Mutex
	snapshots map[string][]contracts.Holding
}

func newFakeHoldings() *fakeHoldings {
	return &fakeHoldings{snapshots: make(map[string][]contracts.Holding)}
}

func (f *fakeHoldings) ReplaceSnapshot(ctx context.Context, etfSymbol, source string, holdings []contracts.Holding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[etfSymbol+"/"+source] = holdings
	return nil
}

func (f *fakeHoldings) GetByETF(ctx context.Context, etfSymbol string) ([]contracts.Holding, error) {
	return nil, nil
}

func (f *fakeHoldings) ConstituentSymbols(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeHoldings) UnenrichedConstituents(ctx context.Context) ([]string, error) {
	return nil, nil
}

type fakeState struct {
	mu   sync.Mutex
	rows map[string]*contracts.BackfillState
}

func newFakeState() *fakeState {
	return &fakeState{rows: make(map[string]*contracts.BackfillState)}
}

func stateKey(symbol string, kind contracts.TaskKind) string {
	return symbol + "/" + string(kind)
}

func (f *fakeState) EnsureTracked(ctx context.Context, symbols []string, kind contracts.TaskKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		key := stateKey(s, kind)
		if _, ok := f.rows[key]; !ok {
			f.rows[key] = &contracts.BackfillState{Symbol: s, TaskKind: kind, Status: contracts.StatusPending}
		}
	}
	return nil
}

func (f *fakeState) ResetInProgress(ctx context.Context, kind contracts.TaskKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.TaskKind == kind && row.Status == contracts.StatusInProgress {
			row.Status = contracts.StatusPending
			n++
		}
	}
	return n, nil
}

func (f *fakeState) Claim(ctx context.Context, symbol string, kind contracts.TaskKind, forceRefresh bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[stateKey(symbol, kind)]
	if !ok || !row.Status.Claimable(forceRefresh) {
		return false, nil
	}
	row.Status = contracts.StatusInProgress
	row.Attempts++
	now := time.Now()
	row.LastAttempt = now
	return true, nil
}

func (f *fakeState) MarkDone(ctx context.Context, symbol string, kind contracts.TaskKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[stateKey(symbol, kind)]
	row.Status = contracts.StatusDone
	row.LastError = ""
	return nil
}

func (f *fakeState) MarkFailed(ctx context.Context, symbol string, kind contracts.TaskKind, status contracts.BackfillStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[stateKey(symbol, kind)]
	row.Status = status
	row.LastError = reason
	return nil
}

func (f *fakeState) Release(ctx context.Context, symbol string, kind contracts.TaskKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[stateKey(symbol, kind)]
	row.Status = contracts.StatusPending
	row.Attempts--
	return nil
}

func (f *fakeState) Get(ctx context.Context, symbol string, kind contracts.TaskKind) (*contracts.BackfillState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[stateKey(symbol, kind)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeState) Counts(ctx context.Context, kind contracts.TaskKind) (*contracts.BackfillCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := &contracts.BackfillCounts{TaskKind: kind}
	for _, row := range f.rows {
		if row.TaskKind != kind {
			continue
		}
		switch row.Status {
		case contracts.StatusPending:
			counts.Pending++
		case contracts.StatusInProgress:
			counts.InProgress++
		case contracts.StatusDone:
			counts.Done++
		case contracts.StatusFailedRetryable:
			counts.FailedRetryable++
		case contracts.StatusFailedPermanent:
			counts.FailedPermanent++
		}
	}
	return counts, nil
}

func (f *fakeState) status(symbol string, kind contracts.TaskKind) contracts.BackfillStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[stateKey(symbol, kind)].Status
}

func newTestOrchestrator(adapter provider.Adapter, state *fakeState, gate *Gate) (*Orchestrator, *fakeSecurities, *fakeHoldings) {
	securities := newFakeSecurities()
	holdings := newFakeHoldings()
	if gate == nil {
		gate = NewGate(time.Microsecond, 0, time.Second)
	}
	o := NewOrchestrator(adapter, securities, holdings, state, gate,
		Config{Workers: 1, MaxAttempts: 3}, logger.Nop())
	return o, securities, holdings
}

func TestRunHappyPath(t *testing.T) {
	adapter := &fakeAdapter{
		records: map[string]*provider.Record{
			"SPY":  {Symbol: "SPY", Name: "SPDR S&P 500", AssetType: "ETF"},
			"AAPL": {Symbol: "AAPL", Name: "Apple Inc", AssetType: "EQUITY"},
		},
		holdings: map[string][]provider.Holding{
			"SPY": {
				{Symbol: "AAPL", Name: "Apple Inc", Percent: 7.1},
				{Symbol: "MSFT", Name: "Microsoft Corp", Percent: 6.8},
			},
		},
	}
	state := newFakeState()
	o, securities, holdings := newTestOrchestrator(adapter, state, nil)

	summary, err := o.Run(context.Background(), []string{"spy", "AAPL"}, contracts.TaskETFMetadata, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Done)
	assert.Equal(t, 0, summary.FailedPermanent)
	assert.False(t, summary.BudgetExhausted)

	assert.Equal(t, contracts.StatusDone, state.status("SPY", contracts.TaskETFMetadata))
	assert.Equal(t, contracts.StatusDone, state.status("AAPL", contracts.TaskETFMetadata))
	assert.Equal(t, 1, securities.upserts["SPY"])

	snapshot := holdings.snapshots["SPY/fake"]
	require.Len(t, snapshot, 2)
	assert.Equal(t, "AAPL", snapshot[0].ConstituentSymbol)
	assert.Equal(t, "MSFT", snapshot[1].ConstituentSymbol)
}

func TestRunNotFoundIsPermanent(t *testing.T) {
	adapter := &fakeAdapter{}
	state := newFakeState()
	o, _, _ := newTestOrchestrator(adapter, state, nil)

	summary, err := o.Run(context.Background(), []string{"NOPE"}, contracts.TaskConstituentEnrich, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedPermanent)
	assert.Equal(t, contracts.StatusFailedPermanent, state.status("NOPE", contracts.TaskConstituentEnrich))
}

func TestRunTransientErrorsExhaustAttempts(t *testing.T) {
	adapter := &fakeAdapter{
		errs: map[string]error{
			"FLAKY": provider.NewError(provider.KindTimeout, "fake", "FLAKY", fmt.Errorf("deadline exceeded")),
		},
	}
	state := newFakeState()
	o, _, _ := newTestOrchestrator(adapter, state, nil)

	kind := contracts.TaskConstituentEnrich
	for i := 0; i < 2; i++ {
		summary, err := o.Run(context.Background(), []string{"FLAKY"}, kind, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.FailedRetryable)
		assert.Equal(t, contracts.StatusFailedRetryable, state.status("FLAKY", kind))
	}

	// Third attempt reaches the cap and becomes permanent.
	summary, err := o.Run(context.Background(), []string{"FLAKY"}, kind, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedPermanent)
	assert.Equal(t, contracts.StatusFailedPermanent, state.status("FLAKY", kind))

	// A fourth run finds nothing claimable.
	summary, err = o.Run(context.Background(), []string{"FLAKY"}, kind, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.FailedPermanent)
}

func TestRunBudgetExhaustionLeavesPending(t *testing.T) {
	adapter := &fakeAdapter{
		records: map[string]*provider.Record{
			"AAA": {Symbol: "AAA", AssetType: "EQUITY"},
			"BBB": {Symbol: "BBB", AssetType: "EQUITY"},
			"CCC": {Symbol: "CCC", AssetType: "EQUITY"},
		},
	}
	state := newFakeState()
	gate := NewGate(time.Microsecond, 1, time.Second)
	o, _, _ := newTestOrchestrator(adapter, state, gate)

	kind := contracts.TaskConstituentEnrich
	summary, err := o.Run(context.Background(), []string{"AAA", "BBB", "CCC"}, kind, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Done)
	assert.True(t, summary.BudgetExhausted)
	assert.Equal(t, 2, summary.Remaining)

	assert.Equal(t, contracts.StatusDone, state.status("AAA", kind))
	assert.Equal(t, contracts.StatusPending, state.status("BBB", kind))
	assert.Equal(t, contracts.StatusPending, state.status("CCC", kind))
}

func TestRunBudgetExhaustionBeforeHoldingsLeavesPending(t *testing.T) {
	adapter := &fakeAdapter{
		records: map[string]*provider.Record{
			"SPY": {Symbol: "SPY", Name: "SPDR S&P 500", AssetType: "ETF"},
		},
		holdings: map[string][]provider.Holding{
			"SPY": {{Symbol: "AAPL", Name: "Apple Inc", Percent: 7.1}},
		},
	}
	state := newFakeState()
	// One call covers the metadata fetch; the holdings fetch finds the
	// budget already spent.
	gate := NewGate(time.Microsecond, 1, time.Second)
	o, securities, holdings := newTestOrchestrator(adapter, state, gate)

	kind := contracts.TaskETFMetadata
	summary, err := o.Run(context.Background(), []string{"SPY"}, kind, Options{})
	require.NoError(t, err)

	assert.True(t, summary.BudgetExhausted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Done)
	assert.Equal(t, 0, summary.FailedRetryable)
	assert.Equal(t, 0, summary.FailedPermanent)

	assert.Equal(t, contracts.StatusPending, state.status("SPY", kind))
	st, err := state.Get(context.Background(), "SPY", kind)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Attempts)

	// The metadata write happened; the next run redoes it idempotently.
	assert.Equal(t, 1, securities.upserts["SPY"])
	assert.Empty(t, holdings.snapshots)
}

func TestRunResumesInterruptedSymbols(t *testing.T) {
	adapter := &fakeAdapter{
		records: map[string]*provider.Record{
			"STUCK": {Symbol: "STUCK", AssetType: "EQUITY"},
		},
	}
	state := newFakeState()
	kind := contracts.TaskConstituentEnrich
	require.NoError(t, state.EnsureTracked(context.Background(), []string{"STUCK"}, kind))
	state.rows[stateKey("STUCK", kind)].Status = contracts.StatusInProgress

	o, _, _ := newTestOrchestrator(adapter, state, nil)

	summary, err := o.Run(context.Background(), []string{"STUCK"}, kind, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Done)
	assert.Equal(t, contracts.StatusDone, state.status("STUCK", kind))
}

func TestRunForceRefresh(t *testing.T) {
	adapter := &fakeAdapter{
		records: map[string]*provider.Record{
			"SPY": {Symbol: "SPY", AssetType: "EQUITY"},
		},
	}
	state := newFakeState()
	o, securities, _ := newTestOrchestrator(adapter, state, nil)

	kind := contracts.TaskConstituentEnrich
	_, err := o.Run(context.Background(), []string{"SPY"}, kind, Options{})
	require.NoError(t, err)

	// Re-running over a done universe is a no-op.
	summary, err := o.Run(context.Background(), []string{"SPY"}, kind, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, securities.upserts["SPY"])

	// Force refresh reprocesses done symbols.
	summary, err = o.Run(context.Background(), []string{"SPY"}, kind, Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Done)
	assert.Equal(t, 2, securities.upserts["SPY"])
}

func TestRunFreshRowsSkipFetch(t *testing.T) {
	adapter := &fakeAdapter{
		records: map[string]*provider.Record{
			"AAA": {Symbol: "AAA", AssetType: "EQUITY"},
			"BBB": {Symbol: "BBB", AssetType: "EQUITY"},
		},
	}
	state := newFakeState()
	securities := newFakeSecurities()
	securities.rows["AAA"] = &contracts.Security{
		Symbol:      "AAA",
		Sector:      "Technology",
		LastUpdated: time.Now(),
	}
	// BBB exists but was last refreshed too long ago.
	securities.rows["BBB"] = &contracts.Security{
		Symbol:      "BBB",
		Sector:      "Energy",
		LastUpdated: time.Now().Add(-48 * time.Hour),
	}
	o := NewOrchestrator(adapter, securities, newFakeHoldings(), state,
		NewGate(time.Microsecond, 0, time.Second),
		Config{Workers: 1, MaxAttempts: 3, StalenessTTL: 24 * time.Hour}, logger.Nop())

	kind := contracts.TaskConstituentEnrich
	summary, err := o.Run(context.Background(), []string{"AAA", "BBB"}, kind, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Done)
	assert.Equal(t, 1, adapter.fetches)
	assert.Equal(t, 0, securities.upserts["AAA"])
	assert.Equal(t, 1, securities.upserts["BBB"])
	assert.Equal(t, contracts.StatusDone, state.status("AAA", kind))
	assert.Equal(t, contracts.StatusDone, state.status("BBB", kind))
}

func TestGateBudget(t *testing.T) {
	gate := NewGate(time.Microsecond, 2, time.Second)

	require.NoError(t, gate.Acquire(context.Background()))
	require.NoError(t, gate.Acquire(context.Background()))
	assert.True(t, gate.Exhausted())

	err := gate.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 2, gate.Used())
}

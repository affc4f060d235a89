package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portrec/portrec/internal/api/handlers"
	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

type stubState struct{}

func (stubState) EnsureTracked(ctx context.Context, symbols []string, kind contracts.TaskKind) error {
	return nil
}

func (stubState) ResetInProgress(ctx context.Context, kind contracts.TaskKind) (int, error) {
	return 0, nil
}

func (stubState) Claim(ctx context.Context, symbol string, kind contracts.TaskKind, forceRefresh bool) (bool, error) {
	return false, nil
}

func (stubState) MarkDone(ctx context.Context, symbol string, kind contracts.TaskKind) error {
	return nil
}

func (stubState) MarkFailed(ctx context.Context, symbol string, kind contracts.TaskKind, status contracts.BackfillStatus, reason string) error {
	return nil
}

func (stubState) Release(ctx context.Context, symbol string, kind contracts.TaskKind) error {
	return nil
}

func (stubState) Get(ctx context.Context, symbol string, kind contracts.TaskKind) (*contracts.BackfillState, error) {
	return nil, nil
}

func (stubState) Counts(ctx context.Context, kind contracts.TaskKind) (*contracts.BackfillCounts, error) {
	return &contracts.BackfillCounts{TaskKind: kind, Done: 3, Pending: 1}, nil
}

type stubSecurities struct{}

func (stubSecurities) Get(ctx context.Context, symbol string) (*contracts.Security, error) {
	if symbol == "SPY" {
		return &contracts.Security{Symbol: "SPY", Name: "SPDR S&P 500", AssetType: "ETF"}, nil
	}
	return nil, nil
}

func (stubSecurities) Upsert(ctx context.Context, patch *contracts.SecurityPatch, source string) (*contracts.Security, error) {
	return nil, nil
}

func (stubSecurities) EnsurePlaceholder(ctx context.Context, symbol, name string) error { return nil }

func (stubSecurities) ListSymbols(ctx context.Context, assetType string) ([]string, error) {
	return nil, nil
}

type stubHoldings struct{}

func (stubHoldings) ReplaceSnapshot(ctx context.Context, etfSymbol, source string, holdings []contracts.Holding) error {
	return nil
}

func (stubHoldings) GetByETF(ctx context.Context, etfSymbol string) ([]contracts.Holding, error) {
	return nil, nil
}

func (stubHoldings) ConstituentSymbols(ctx context.Context) ([]string, error) { return nil, nil }

func (stubHoldings) UnenrichedConstituents(ctx context.Context) ([]string, error) { return nil, nil }

type stubTheses struct{}

func (stubTheses) Import(ctx context.Context, theses []*contracts.Thesis) (int, error) {
	return 0, nil
}

func (stubTheses) List(ctx context.Context, selectedOnly bool) ([]*contracts.Thesis, error) {
	return []*contracts.Thesis{{ID: 1, Title: "AI Infrastructure"}}, nil
}

func (stubTheses) Get(ctx context.Context, id int64) (*contracts.Thesis, error) { return nil, nil }

func (stubTheses) SetSelected(ctx context.Context, id int64, selected bool) error { return nil }

func (stubTheses) SetPriority(ctx context.Context, id int64, priority int) error { return nil }

func (stubTheses) SaveAlignment(ctx context.Context, alignment *contracts.Alignment) error {
	return nil
}

func (stubTheses) ListAlignments(ctx context.Context, thesisID int64, limit int) ([]*contracts.Alignment, error) {
	return nil, nil
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func newTestRouter() http.Handler {
	log := logger.Nop()
	return NewRouter(
		stubPinger{},
		handlers.NewBackfillHandler(stubState{}, log),
		handlers.NewSecurityHandler(stubSecurities{}, stubHoldings{}, log),
		handlers.NewThesisHandler(stubTheses{}, log),
		log,
	)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	log := logger.Nop()
	router := NewRouter(
		stubPinger{err: errors.New("connection refused")},
		handlers.NewBackfillHandler(stubState{}, log),
		handlers.NewSecurityHandler(stubSecurities{}, stubHoldings{}, log),
		handlers.NewThesisHandler(stubTheses{}, log),
		log,
	)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestBackfillStatusEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/backfill/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []struct {
			TaskKind string  `json:"task_kind"`
			Done     int     `json:"done"`
			Progress float64 `json:"progress"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 2)
	assert.Equal(t, "etf_metadata", body.Tasks[0].TaskKind)
	assert.Equal(t, 3, body.Tasks[0].Done)
}

func TestSecurityEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/securities/spy", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SPDR S&P 500")

	req = httptest.NewRequest("GET", "/api/securities/NOPE", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThesesEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/theses", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AI Infrastructure")

	req = httptest.NewRequest("GET", "/api/theses/9/alignments", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

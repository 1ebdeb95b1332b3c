package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eqindex/internal/api/handlers"
	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/internal/export"
	"github.com/wonny/eqindex/internal/index"
	"github.com/wonny/eqindex/internal/memstore"
	"github.com/wonny/eqindex/internal/metrics"
	"github.com/wonny/eqindex/pkg/logger"
)

type fakeAcquirer struct {
	days int
	err  error
}

func (f *fakeAcquirer) Acquire(_ context.Context, days int) (*contracts.AcquisitionResult, error) {
	f.days = days
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.AcquisitionResult{Tickers: 3, ObservationsStored: 9}, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	router    http.Handler
	acquirer  *fakeAcquirer
	exportDir string
	metrics   *metrics.Metrics
}

func obs(date, ticker string, close, marketCap float64) contracts.Observation {
	return contracts.Observation{Date: date, Ticker: ticker, Close: close, Volume: 1000, MarketCap: marketCap}
}

func newTestEnv(t *testing.T, dbErr error) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	store := memstore.New()
	_, err := store.UpsertStocks(ctx, []contracts.Stock{
		{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Information Technology"},
		{Ticker: "MSFT", Name: "Microsoft", Sector: "Information Technology"},
		{Ticker: "GOOG", Name: "Alphabet Inc.", Sector: "Communication Services"},
	})
	require.NoError(t, err)
	_, err = store.InsertObservations(ctx, []contracts.Observation{
		obs("2024-01-02", "AAPL", 100, 3e12),
		obs("2024-01-02", "MSFT", 200, 2e12),
		obs("2024-01-02", "GOOG", 50, 1e12),
		obs("2024-01-03", "AAPL", 110, 3e12),
		obs("2024-01-03", "MSFT", 210, 1e12),
		obs("2024-01-03", "GOOG", 55, 2e12),
		obs("2024-01-04", "AAPL", 121, 3e12),
		obs("2024-01-04", "MSFT", 220, 1e12),
		obs("2024-01-04", "GOOG", 55, 2e12),
	})
	require.NoError(t, err)

	m := metrics.New()
	service := index.NewService(store, nil, log)
	builder := index.NewBuilder(index.NewSelector(store, 2, log), store, store, nil, log, index.WithMetrics(m))
	exportDir := t.TempDir()
	acquirer := &fakeAcquirer{}

	router := NewRouter(RouterDeps{
		Index:   handlers.NewIndexHandler(builder, service, export.NewExporter(service, exportDir, log), log),
		Data:    handlers.NewDataHandler(acquirer, 30, log),
		System:  handlers.NewSystemHandler("eqindex", "test", map[string]handlers.Pinger{"database": pingFunc(func(context.Context) error { return dbErr })}),
		Metrics: m,
		Logger:  log,
	})

	return &testEnv{router: router, acquirer: acquirer, exportDir: exportDir, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIndexLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/index/build", `{"start_date":"2024-01-02","end_date":"2024-01-04"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, contracts.BuildSummary{
		StartDate:          "2024-01-02",
		EndDate:            "2024-01-04",
		TradingDays:        2,
		CompositionChanges: 2,
	}, decode[contracts.BuildSummary](t, rec))

	rec = env.do(t, http.MethodPost, "/api/index/build", `{"start_date":"2024-01-03","end_date":"2024-01-03"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[handlers.APIError](t, rec)
	assert.Equal(t, handlers.CodeAlreadyBuilt, conflict.ErrorCode)
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)

	rec = env.do(t, http.MethodGet, "/api/index/performance?start_date=2024-01-02&end_date=2024-01-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	perf := decode[contracts.PerformanceResponse](t, rec)
	// the first trading date only seeds the prior composition
	require.Len(t, perf.Performances, 2)
	assert.Equal(t, "2024-01-03", perf.Performances[0].Date)
	assert.InDelta(t, 0.05, perf.Performances[0].DailyReturn, 1e-12)

	rec = env.do(t, http.MethodGet, "/api/index/composition?date=2024-01-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	comp := decode[contracts.CompositionResponse](t, rec)
	require.Len(t, comp.Compositions, 2)
	assert.Equal(t, "AAPL", comp.Compositions[0].Ticker)
	assert.Equal(t, 0.5, comp.Compositions[0].Weight)

	rec = env.do(t, http.MethodGet, "/api/index/changes?start_date=2024-01-02&end_date=2024-01-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	changes := decode[contracts.ChangesResponse](t, rec)
	require.Len(t, changes.Changes, 2)
	assert.Equal(t, contracts.EventEntry, changes.Changes[0].Event)
	assert.Equal(t, "GOOG", changes.Changes[0].Ticker)
	assert.Equal(t, contracts.EventExit, changes.Changes[1].Event)
	assert.Equal(t, "MSFT", changes.Changes[1].Ticker)
}

func TestReadsOfUnbuiltRangeAreEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/index/performance?start_date=2023-01-01&end_date=2023-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"start_date":"2023-01-01","end_date":"2023-01-31","performances":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/index/composition?date=2023-01-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2023-01-03","compositions":[]}`, rec.Body.String())
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		field  string
	}{
		{"build missing start", http.MethodPost, "/api/index/build", `{}`, "start_date"},
		{"build empty body", http.MethodPost, "/api/index/build", "", "start_date"},
		{"build bad date", http.MethodPost, "/api/index/build", `{"start_date":"01/02/2024"}`, "start_date"},
		{"build reversed", http.MethodPost, "/api/index/build", `{"start_date":"2024-02-01","end_date":"2024-01-01"}`, "end_date"},
		{"build unknown field", http.MethodPost, "/api/index/build", `{"start":"2024-01-01"}`, "body"},
		{"build malformed", http.MethodPost, "/api/index/build", `{"start_date":`, "body"},
		{"performance missing start", http.MethodGet, "/api/index/performance", "", "start_date"},
		{"performance bad end", http.MethodGet, "/api/index/performance?start_date=2024-01-01&end_date=2024-13-01", "", "end_date"},
		{"composition missing date", http.MethodGet, "/api/index/composition", "", "date"},
		{"changes reversed", http.MethodGet, "/api/index/changes?start_date=2024-02-01&end_date=2024-01-01", "", "end_date"},
		{"acquire negative days", http.MethodPost, "/api/data/acquire", `{"days":-1}`, "days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			apiErr := decode[handlers.APIError](t, rec)
			assert.Equal(t, handlers.CodeValidationFailed, apiErr.ErrorCode)
			assert.Equal(t, map[string]interface{}{"field": tt.field}, apiErr.Details)
		})
	}
}

func TestExportDownload(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/index/build", `{"start_date":"2024-01-02","end_date":"2024-01-04"}`).Code)

	rec := env.do(t, http.MethodPost, "/api/index/export", `{"start_date":"2024-01-02","end_date":"2024-01-04"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stock_index_2024-01-02_to_2024-01-04.xlsx")
	// xlsx is a zip archive
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	entries, err := os.ReadDir(env.exportDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquire(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/data/acquire", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, env.acquirer.days)
	assert.Equal(t, 9, decode[contracts.AcquisitionResult](t, rec).ObservationsStored)

	rec = env.do(t, http.MethodPost, "/api/data/acquire", `{"days":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, env.acquirer.days)

	env.acquirer.err = &contracts.UpstreamError{Op: "fetch constituents", Err: errors.New("timeout")}
	rec = env.do(t, http.MethodPost, "/api/data/acquire", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, handlers.CodeUpstreamUnavailable, decode[handlers.APIError](t, rec).ErrorCode)
}

func TestSystemRoutes(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		rec := newTestEnv(t, nil).do(t, http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"service":"eqindex"`)
	})

	t.Run("healthy", func(t *testing.T) {
		rec := newTestEnv(t, nil).do(t, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","service":"eqindex","dependencies":{"database":"ok"}}`, rec.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		rec := newTestEnv(t, errors.New("connection refused")).do(t, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})

	t.Run("not found", func(t *testing.T) {
		rec := newTestEnv(t, nil).do(t, http.MethodGet, "/api/unknown", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, handlers.CodeNotFound, decode[handlers.APIError](t, rec).ErrorCode)
	})

	t.Run("metrics", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.do(t, http.MethodGet, "/health", "")
		rec := env.do(t, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `eqindex_http_requests_total{method="GET",route="/health",status="200"} 1`)
	})
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("request id assigned", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/health", "")
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("request id propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("cors preflight", func(t *testing.T) {
		rec := env.do(t, http.MethodOptions, "/api/index/build", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("panic recovered", func(t *testing.T) {
		h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, handlers.CodeInternal, decode[handlers.APIError](t, rec).ErrorCode)
	})
}

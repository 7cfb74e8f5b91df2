package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-tca/internal/calibration"
	"credit-tca/internal/decision"
	"credit-tca/internal/domain"
	"credit-tca/internal/metrics"
	"credit-tca/internal/observability"
	"credit-tca/internal/storage/memory"
	"credit-tca/internal/tca"
)

type testServer struct {
	srv        *Server
	engine     *tca.Engine
	snapshots  *memory.SnapshotStore
	postTrades *memory.PostTradeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	engine, err := tca.NewEngine(tca.DefaultParams(), tca.WithEngineID("api-test"))
	require.NoError(t, err)
	calibrator, err := calibration.NewEngine(engine, calibration.DefaultParams())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ts := &testServer{
		engine:     engine,
		snapshots:  memory.NewSnapshotStore(),
		postTrades: memory.NewPostTradeStore(),
	}
	ts.srv, err = New(Config{
		MaxBodyBytes: 1 << 16,
		Engine:       engine,
		Calibrator:   calibrator,
		Snapshots:    ts.snapshots,
		PostTrades:   ts.postTrades,
		Metrics:      observability.NewMetrics("tca_test", reg),
		Gatherer:     reg,
		Log:          zerolog.Nop(),
	})
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func f64(v float64) *float64 { return &v }

func trainingRows() []SnapshotDTO {
	rows := make([]SnapshotDTO, 0, 12)
	for i := 0; i < 12; i++ {
		rows = append(rows, SnapshotDTO{
			InstrumentID:  "XS2100000001",
			TimestampMs:   1704067200000 + int64(i)*60_000,
			SpreadBps:     8 + float64(i%4),
			AvailableSize: 2e7,
			VolatilityBps: f64(40),
		})
	}
	return rows
}

func quote() *SnapshotDTO {
	return &SnapshotDTO{InstrumentID: "XS2100000001", SpreadBps: 10, AvailableSize: 5e7, VolatilityBps: f64(40), RiskTier: "IG"}
}

func (ts *testServer) train(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/train", TrainRequest{Snapshots: trainingRows()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNew_RequiresEngines(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "api-test", resp.EngineID)
	assert.Equal(t, "UNTRAINED", resp.State)
}

func TestUntrainedEngine_Conflict(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/model", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Snapshot: quote(),
		Trade:    &TradeDTO{Size: 1e6, Side: "BUY", AlphaBps: 15},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	assert.Equal(t, "NOT_TRAINED", apiErr.ErrorCode)
}

func TestTrainAndEvaluate(t *testing.T) {
	ts := newTestServer(t)
	ts.train(t)

	rec := ts.do(t, http.MethodGet, "/v1/model", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var model ModelResponse
	decodeBody(t, rec, &model)
	assert.Equal(t, "TRAINED", model.State)
	require.NotNil(t, model.Model)
	assert.Equal(t, 12, model.Model.TrainedRows)

	rec = ts.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Snapshot: quote(),
		Trade:    &TradeDTO{Size: 1e6, Side: "buy", AlphaBps: 40},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result tca.EvaluationResult
	decodeBody(t, rec, &result)
	assert.Equal(t, decision.ActionBuy, result.Decision)
	assert.Greater(t, result.CostBps, 0.0)
	assert.InDelta(t, result.AlphaBps-result.CostBps, result.NetEdgeBps, 1e-9)

	rec = ts.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Snapshot: quote(),
		Trade:    &TradeDTO{Size: 1e6, Side: "SELL", AlphaBps: 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &result)
	assert.Equal(t, decision.ActionHold, result.Decision)
}

func TestTrain_FromStore(t *testing.T) {
	ts := newTestServer(t)

	rows := trainingRows()
	stored := make([]*domain.MarketSnapshot, len(rows))
	for i := range rows {
		s, err := rows[i].toDomain()
		require.NoError(t, err)
		s.SnapshotID = rows[i].InstrumentID + "-" + string(rune('a'+i))
		stored[i] = &s
	}
	require.NoError(t, ts.snapshots.InsertBulk(context.Background(), stored))

	from, to := int64(1704067200000), int64(1704067200000+5*60_000)
	rec := ts.do(t, http.MethodPost, "/v1/train", TrainRequest{FromMs: &from, ToMs: &to})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var model ModelResponse
	decodeBody(t, rec, &model)
	assert.Equal(t, 6, model.Model.TrainedRows)

	// empty window
	from, to = 0, 1
	rec = ts.do(t, http.MethodPost, "/v1/train", TrainRequest{FromMs: &from, ToMs: &to})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.train(t)

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode string
	}{
		{"malformed json", "/v1/evaluate", `{"snapshot":`, "INVALID_REQUEST"},
		{"missing trade", "/v1/evaluate", EvaluateRequest{Snapshot: quote()}, "VALIDATION_FAILED"},
		{"zero size", "/v1/evaluate", EvaluateRequest{Snapshot: quote(), Trade: &TradeDTO{Size: 0, Side: "BUY"}}, "VALIDATION_FAILED"},
		{"unknown side", "/v1/evaluate", EvaluateRequest{Snapshot: quote(), Trade: &TradeDTO{Size: 1, Side: "HOLD"}}, "VALIDATION_FAILED"},
		{"snapshot without liquidity", "/v1/evaluate", EvaluateRequest{
			Snapshot: &SnapshotDTO{SpreadBps: 10},
			Trade:    &TradeDTO{Size: 1, Side: "BUY"},
		}, "VALIDATION_FAILED"},
		{"train window without end", "/v1/train", map[string]interface{}{"from_ms": 1}, "VALIDATION_FAILED"},
		{"bad scenario", "/v1/stress", StressRequest{
			Snapshots: []SnapshotDTO{*quote()},
			Trade:     &TradeDTO{Size: 1, Side: "BUY"},
			Scenarios: []ScenarioDTO{{ScenarioID: "x", SpreadMultiplier: 1, LiquidityMultiplier: 0, VolatilityMultiplier: 1}},
		}, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var apiErr APIError
			decodeBody(t, rec, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}
}

func TestValidationErrors_UseJSONFieldNames(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{Snapshot: quote(), Trade: &TradeDTO{Side: "BUY"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"EvaluateRequest.trade.size"`)
}

func TestBodyLimit(t *testing.T) {
	ts := newTestServer(t)

	big := `{"snapshots":[` + strings.Repeat(`{"spread_bps":10,"available_size":1},`, 4000) + `{}]}`
	rec := ts.do(t, http.MethodPost, "/v1/train", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalibrate(t *testing.T) {
	ts := newTestServer(t)
	ts.train(t)

	req := CalibrateRequest{Records: []PostTradeDTO{
		{InstrumentID: "XS2100000001", TimestampMs: 1, PredictedCostBps: 10, RealizedCostBps: 25, ReversionBps: 20},
		{InstrumentID: "XS2100000001", TimestampMs: 2, PredictedCostBps: 12, RealizedCostBps: 28, ReversionBps: 25},
		{InstrumentID: "XS2100000001", TimestampMs: 3, PredictedCostBps: 11, RealizedCostBps: 22, ReversionBps: 18},
	}}

	rec := ts.do(t, http.MethodPost, "/v1/calibrate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CalibrateResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Report)
	assert.Equal(t, calibration.ActionAutoCorrected, resp.Report.Action)
	assert.InDelta(t, 1.14, resp.Report.MultiplierAfter, 1e-12)
	assert.Equal(t, 3, resp.StoredRecords)
	assert.Equal(t, 0, resp.DuplicateCount)
	assert.Equal(t, 1, ts.engine.Calibration().Generation)

	// resubmitted records are counted, not stored twice
	rec = ts.do(t, http.MethodPost, "/v1/calibrate", req)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, 0, resp.StoredRecords)
	assert.Equal(t, 3, resp.DuplicateCount)

	stored, err := ts.postTrades.GetByTimeRange(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	rec = ts.do(t, http.MethodPost, "/v1/calibrate", CalibrateRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStress(t *testing.T) {
	ts := newTestServer(t)
	ts.train(t)

	rec := ts.do(t, http.MethodPost, "/v1/stress", StressRequest{
		Snapshots: []SnapshotDTO{*quote()},
		Trade:     &TradeDTO{Size: 1e6, Side: "BUY", AlphaBps: 40},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp StressResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Report)
	assert.Len(t, resp.Report.Scenarios, 4)
	require.NotNil(t, resp.Report.Stability)
	assert.Equal(t, decision.DecisionGO, resp.Report.Stability.Decision)

	rec = ts.do(t, http.MethodPost, "/v1/stress", StressRequest{Trade: &TradeDTO{Size: 1e6, Side: "BUY"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/healthz", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tca_test_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}

func TestCostErrorSummary(t *testing.T) {
	ts := newTestServer(t)
	ts.train(t)

	rec := ts.do(t, http.MethodGet, "/v1/post-trade/summary?from_ms=0&to_ms=10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/calibrate", CalibrateRequest{Records: []PostTradeDTO{
		{InstrumentID: "XS2100000001", TimestampMs: 1, PredictedCostBps: 10, RealizedCostBps: 25, ReversionBps: 20},
		{InstrumentID: "XS2100000002", TimestampMs: 2, PredictedCostBps: 12, RealizedCostBps: 28, ReversionBps: 25},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/post-trade/summary?from_ms=0&to_ms=10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report metrics.CostErrorReport
	decodeBody(t, rec, &report)
	assert.Equal(t, 2, report.Records)
	assert.InDelta(t, 15.5, report.Overall.Mean, 1e-9)
	assert.Len(t, report.Instruments, 2)

	rec = ts.do(t, http.MethodGet, "/v1/post-trade/summary?from_ms=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/v1/post-trade/summary?from_ms=10&to_ms=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

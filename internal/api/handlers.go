package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"credit-tca/internal/calibration"
	"credit-tca/internal/domain"
	"credit-tca/internal/metrics"
	"credit-tca/internal/storage"
	"credit-tca/internal/stress"
	"credit-tca/internal/tca"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:   "ok",
		EngineID: s.engine.ID(),
		State:    s.engine.State().String(),
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	model, err := s.engine.Model()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, ModelResponse{State: s.engine.State().String(), Model: model})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if !s.decode(w, r, &req) {
		return
	}

	snapshots, err := snapshotsToDomain(req.Snapshots)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(snapshots) == 0 && req.FromMs != nil && s.snapshots != nil {
		stored, err := s.snapshots.GetByTimeRange(r.Context(), *req.FromMs, *req.ToMs)
		if err != nil {
			s.fail(w, r, fmt.Errorf("load snapshots: %w", err))
			return
		}
		snapshots = make([]domain.MarketSnapshot, len(stored))
		for i, snap := range stored {
			snapshots[i] = *snap
		}
	}

	s.writeMu.Lock()
	model, err := s.engine.Train(snapshots)
	s.writeMu.Unlock()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, ModelResponse{State: tca.StateTrained.String(), Model: model})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	snapshot, err := req.Snapshot.toDomain()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trade, err := req.Trade.toDomain()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.engine.EvaluateTradeOpportunity(snapshot, trade)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if !s.decode(w, r, &req) {
		return
	}
	records := make([]domain.PostTradeRecord, len(req.Records))
	for i := range req.Records {
		records[i] = req.Records[i].toDomain()
	}

	s.writeMu.Lock()
	report, err := s.calibrator.AnalyzeBatch(r.Context(), records)
	s.writeMu.Unlock()
	if err != nil && report == nil {
		s.fail(w, r, err)
		return
	}
	if err != nil {
		// Calibration applied; only the audit write failed.
		s.log.Error().Err(err).Str("run_id", report.RunID).Msg("calibration audit log write failed")
	}

	resp := CalibrateResponse{Report: report}
	if s.postTrades != nil {
		resp.StoredRecords, resp.DuplicateCount = s.storeRecords(r, records, report)
	}
	render.JSON(w, r, resp)
}

// storeRecords persists the batch one record at a time so that resubmitted
// records are counted rather than failing the batch.
func (s *Server) storeRecords(r *http.Request, records []domain.PostTradeRecord, report *calibration.Report) (stored, duplicates int) {
	for i := range records {
		rec := records[i]
		if rec.RecordID == "" && i < len(report.Records) {
			rec.RecordID = report.Records[i].RecordID
		}
		err := s.postTrades.Insert(r.Context(), &rec)
		switch {
		case err == nil:
			stored++
		case errors.Is(err, storage.ErrDuplicateKey):
			duplicates++
		default:
			s.log.Error().Err(err).Str("record_id", rec.RecordID).Msg("failed to store post-trade record")
		}
	}
	return stored, duplicates
}

func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	var req StressRequest
	if !s.decode(w, r, &req) {
		return
	}
	snapshots, err := snapshotsToDomain(req.Snapshots)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trade, err := req.Trade.toDomain()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scenarios := make([]domain.StressScenario, len(req.Scenarios))
	for i, sc := range req.Scenarios {
		scenarios[i] = domain.StressScenario{
			ScenarioID:           sc.ScenarioID,
			SpreadMultiplier:     sc.SpreadMultiplier,
			LiquidityMultiplier:  sc.LiquidityMultiplier,
			VolatilityMultiplier: sc.VolatilityMultiplier,
		}
	}

	report, err := stress.Run(s.engine, snapshots, trade, scenarios)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, StressResponse{Report: report})
}

// handleCostErrorSummary summarizes stored post-trade cost errors over
// [from_ms, to_ms]. to_ms defaults to now.
func (s *Server) handleCostErrorSummary(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt64(r, "from_ms", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := queryInt64(r, "to_ms", time.Now().UnixMilli())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if to < from {
		s.fail(w, r, &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "VALIDATION_FAILED", Message: "to_ms must not precede from_ms"})
		return
	}

	report, err := s.costErrors.ComputeCostErrors(r.Context(), from, to)
	if errors.Is(err, metrics.ErrNoRecords) {
		s.fail(w, r, &APIError{StatusCode: http.StatusNotFound, ErrorCode: "NO_RECORDS", Message: err.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "VALIDATION_FAILED", Message: fmt.Sprintf("%s must be an integer", key)}
	}
	return v, nil
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.fail(w, r, errInvalidBody(err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.fail(w, r, errValidationFailed(err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errorFor(err)
	event := s.log.Warn()
	if apiErr.StatusCode >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).
		Int("status", apiErr.StatusCode).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
	_ = render.Render(w, r, apiErr)
}

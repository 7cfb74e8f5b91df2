// Package calibration compares realized post-trade costs with the engine's
// estimates and corrects the liquidity-impact bias when the evidence allows.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"credit-tca/internal/domain"
	"credit-tca/internal/idhash"
	"credit-tca/internal/metrics"
	"credit-tca/internal/observability"
	"credit-tca/internal/storage"
	"credit-tca/internal/tca"
)

// epsilonBps guards the reversion ratio against zero or negative realized cost.
const epsilonBps = 1e-9

// Engine analyzes post-trade batches for one evaluation engine.
// It shares the target, it does not own it.
type Engine struct {
	target   *tca.Engine
	params   Params
	logStore storage.CalibrationLogStore
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogStore records every report in store.
func WithLogStore(store storage.CalibrationLogStore) Option {
	return func(e *Engine) { e.logStore = store }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine binds a calibration engine to target.
func NewEngine(target *tca.Engine, params Params, opts ...Option) (*Engine, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target engine", tca.ErrValidation)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", tca.ErrValidation, err)
	}
	e := &Engine{
		target: target,
		params: params,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "calibration").Str("engine_id", target.ID()).Logger()
	return e, nil
}

// Params returns the calibration parameters.
func (e *Engine) Params() Params {
	return e.params
}

// AnalyzeBatch classifies each record's cost error, aggregates the batch and,
// when the mean error is material and mostly liquidity-driven, raises the
// target's liquidity multiplier. Other material errors are flagged for
// manual review with a MODEL_DRIFT warning.
//
// On error the target is unchanged, except when only the audit log write
// fails: the report is returned together with that error.
func (e *Engine) AnalyzeBatch(ctx context.Context, records []domain.PostTradeRecord) (*Report, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty post-trade batch", tca.ErrInsufficientData)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", tca.ErrValidation, i, err)
		}
	}
	model, err := e.target.Model()
	if err != nil {
		return nil, err
	}

	report := e.classify(model, records)
	e.decide(report)

	if report.Action == ActionAutoCorrected {
		_, after, err := e.target.ApplyBiasCorrection(model, report.MultiplierAfter)
		if err != nil {
			return nil, err
		}
		report.GenerationAfter = after.Generation
	}

	e.metrics.RecordCalibration(string(report.Action), report.MeanCostErrorBps, report.GenerationAfter, report.MultiplierAfter, len(report.Warnings))
	event := e.logger.Info()
	if len(report.Warnings) > 0 {
		event = e.logger.Warn()
	}
	event.
		Str("run_id", report.RunID).
		Int("records", report.RecordCount).
		Float64("mean_error_bps", report.MeanCostErrorBps).
		Float64("liquidity_fraction", report.LiquidityImpactFraction).
		Str("action", string(report.Action)).
		Float64("multiplier_before", report.MultiplierBefore).
		Float64("multiplier_after", report.MultiplierAfter).
		Int("warnings", len(report.Warnings)).
		Msg("post-trade batch analyzed")

	if e.logStore != nil {
		err := e.logStore.Insert(ctx, toRun(report, e.now()))
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			e.logger.Debug().Str("run_id", report.RunID).Msg("calibration run already recorded")
		case err != nil:
			e.logger.Error().Err(err).Str("run_id", report.RunID).Msg("failed to record calibration run")
			return report, fmt.Errorf("record calibration run %s: %w", report.RunID, err)
		}
	}
	return report, nil
}

// classify computes per-record diagnostics and batch aggregates.
func (e *Engine) classify(model *tca.Model, records []domain.PostTradeRecord) *Report {
	report := &Report{
		EngineID:         model.EngineID,
		RecordCount:      len(records),
		MultiplierBefore: model.Calibration.LiquidityMultiplier,
		MultiplierAfter:  model.Calibration.LiquidityMultiplier,
		GenerationBefore: model.Calibration.Generation,
		GenerationAfter:  model.Calibration.Generation,
		Records:          make([]RecordDiagnostic, len(records)),
	}

	errs := make([]float64, len(records))
	ids := make([]string, len(records))
	var positiveTotal, positiveLiquidity float64

	for i := range records {
		r := &records[i]
		id := r.RecordID
		if id == "" {
			id = idhash.ComputeRecordID(r.InstrumentID, r.TimestampMs, r.PredictedCostBps, r.RealizedCostBps, r.ReversionBps)
		}
		ids[i] = id

		costErr := r.CostErrorBps()
		errs[i] = costErr
		cause := e.causeOf(r)

		ratio := 0.0
		if r.RealizedCostBps > 0 {
			ratio = r.ReversionBps / r.RealizedCostBps
		}

		if cause == CauseLiquidityImpact {
			report.LiquidityImpactCount++
		} else {
			report.MisspecificationCount++
		}
		if costErr > 0 {
			positiveTotal += costErr
			if cause == CauseLiquidityImpact {
				positiveLiquidity += costErr
			}
		}

		report.Records[i] = RecordDiagnostic{
			RecordID:       id,
			InstrumentID:   r.InstrumentID,
			CostErrorBps:   costErr,
			ReversionRatio: ratio,
			Cause:          cause,
		}
	}

	report.RunID = idhash.ComputeCalibrationRunID(model.EngineID, model.Calibration.Generation, ids)
	report.CostError = metrics.Summarize(errs)
	report.MeanCostErrorBps = report.CostError.Mean
	report.LiquidityImpactFraction = float64(report.LiquidityImpactCount) / float64(len(records))
	if positiveTotal > 0 {
		report.LiquidityErrorShare = positiveLiquidity / positiveTotal
	}
	return report
}

// causeOf attributes a record to liquidity impact when the price reverted by
// at least ReversionRatioThreshold of the realized cost.
func (e *Engine) causeOf(r *domain.PostTradeRecord) Cause {
	if r.ReversionBps > 0 && r.ReversionBps >= e.params.ReversionRatioThreshold*math.Max(r.RealizedCostBps, epsilonBps) {
		return CauseLiquidityImpact
	}
	return CauseModelMisspecification
}

// decide sets the action, the proposed multiplier and warnings.
func (e *Engine) decide(report *Report) {
	p := e.params
	mean := report.MeanCostErrorBps
	old := report.MultiplierBefore

	switch {
	case mean > p.MaterialityBps && report.LiquidityImpactFraction > p.MajorityFraction:
		step := math.Min(p.MaxStep, p.StepPerBps*mean)
		next := math.Min(p.MaxMultiplier, old*(1+step))
		if next <= old {
			report.Action = ActionManualReview
			report.Warnings = append(report.Warnings, Warning{
				Kind:    WarningMultiplierCapped,
				Message: fmt.Sprintf("liquidity multiplier %.4f is at the cap %.4f; mean error %.2f bps left uncorrected", old, p.MaxMultiplier, mean),
			})
			return
		}
		report.Action = ActionAutoCorrected
		report.MultiplierAfter = next

	case mean > p.MaterialityBps:
		report.Action = ActionManualReview
		report.Warnings = append(report.Warnings, Warning{
			Kind: WarningModelDrift,
			Message: fmt.Sprintf("mean cost error %.2f bps with only %.0f%% liquidity-driven records: permanent cost underestimation",
				mean, 100*report.LiquidityImpactFraction),
		})

	case mean < -p.MaterialityBps:
		report.Action = ActionManualReview
		report.Warnings = append(report.Warnings, Warning{
			Kind:    WarningModelDrift,
			Message: fmt.Sprintf("mean cost error %.2f bps: model overestimates cost", mean),
		})

	default:
		report.Action = ActionNoAction
	}
}

func toRun(r *Report, at time.Time) *domain.CalibrationRun {
	warnings := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		warnings = append(warnings, string(w.Kind))
	}
	return &domain.CalibrationRun{
		RunID:                 r.RunID,
		EngineID:              r.EngineID,
		CreatedAtMs:           at.UnixMilli(),
		RecordCount:           r.RecordCount,
		MeanCostErrorBps:      r.MeanCostErrorBps,
		LiquidityImpactCount:  r.LiquidityImpactCount,
		MisspecificationCount: r.MisspecificationCount,
		Action:                string(r.Action),
		MultiplierBefore:      r.MultiplierBefore,
		MultiplierAfter:       r.MultiplierAfter,
		GenerationBefore:      r.GenerationBefore,
		GenerationAfter:       r.GenerationAfter,
		Warnings:              warnings,
	}
}

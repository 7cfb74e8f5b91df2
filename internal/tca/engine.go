// Package tca implements the pre-trade transaction cost evaluation engine.
package tca

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"credit-tca/internal/decision"
	"credit-tca/internal/domain"
	"credit-tca/internal/observability"
)

// Engine fits cost and fill models from market snapshots and evaluates
// trade opportunities against them.
//
// Reads never block: every evaluation loads one immutable Model. Writes
// (Train, ApplyBiasCorrection) are serialized and publish a new Model.
type Engine struct {
	id        string
	params    Params
	evaluator *decision.Evaluator
	logger    zerolog.Logger
	metrics   *observability.Metrics

	mu    sync.Mutex // serializes writers
	model atomic.Pointer[Model]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineID overrides the generated engine id.
func WithEngineID(id string) Option {
	return func(e *Engine) { e.id = id }
}

// NewEngine creates an untrained engine.
func NewEngine(params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	evaluator, err := decision.NewEvaluator(params.Thresholds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	e := &Engine{
		id:        uuid.NewString(),
		params:    params,
		evaluator: evaluator,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "tca").Str("engine_id", e.id).Logger()
	return e, nil
}

// ID returns the engine id.
func (e *Engine) ID() string {
	return e.id
}

// Params returns the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	if e.model.Load() == nil {
		return StateUntrained
	}
	return StateTrained
}

// Model returns the current model snapshot.
func (e *Engine) Model() (*Model, error) {
	m := e.model.Load()
	if m == nil {
		return nil, ErrNotTrained
	}
	return m, nil
}

// Calibration returns the current calibration state.
// Untrained engines report the initial state.
func (e *Engine) Calibration() CalibrationState {
	if m := e.model.Load(); m != nil {
		return m.Calibration
	}
	return InitialCalibration()
}

// Train fits the cost and fill models and replaces the current model.
// Invalid rows are skipped. Retraining resets calibration to generation 0.
func (e *Engine) Train(rows []domain.MarketSnapshot) (*Model, error) {
	start := time.Now()
	model, err := e.fit(rows)
	if err != nil {
		e.metrics.RecordTraining("error", time.Since(start), 0, 0, false, false)
		e.logger.Warn().Err(err).Int("rows", len(rows)).Msg("training failed")
		return nil, err
	}

	e.mu.Lock()
	e.model.Store(model)
	e.mu.Unlock()

	e.metrics.RecordTraining("success", time.Since(start), model.TrainedRows, model.SkippedRows, model.Cost.Fitted, model.Fill.Fitted)
	e.logger.Info().
		Int("rows", model.TrainedRows).
		Int("skipped", model.SkippedRows).
		Bool("cost_fitted", model.Cost.Fitted).
		Int("cost_outcomes", model.Cost.OutcomeRows).
		Float64("spread_coef", model.Cost.SpreadCoef).
		Float64("impact_coef", model.Cost.ImpactCoef).
		Bool("fill_fitted", model.Fill.Fitted).
		Int("fill_outcomes", model.Fill.OutcomeRows).
		Float64("reference_vol_bps", model.Cost.ReferenceVolatilityBps).
		Dur("took", time.Since(start)).
		Msg("model trained")
	return model, nil
}

func (e *Engine) fit(rows []domain.MarketSnapshot) (*Model, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no snapshots", ErrInsufficientData)
	}

	usable := make([]*domain.MarketSnapshot, 0, len(rows))
	var firstErr error
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("row %d: %w", i, err)
			}
			continue
		}
		usable = append(usable, &rows[i])
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: no usable snapshots: %w", ErrInsufficientData, firstErr)
	}
	skipped := len(rows) - len(usable)
	if skipped > 0 {
		e.logger.Debug().Int("skipped", skipped).AnErr("first_error", firstErr).Msg("skipped invalid snapshots")
	}

	cost, err := fitCostModel(usable, e.params)
	if err != nil {
		e.logger.Warn().Err(err).Msg("cost regression failed, using default coefficients")
	}
	fill, err := fitFillModel(usable, e.params)
	if err != nil {
		e.logger.Warn().Err(err).Msg("fill regression failed, using default coefficients")
	}

	return &Model{
		EngineID:    e.id,
		TrainedRows: len(usable),
		SkippedRows: skipped,
		Cost:        cost,
		Fill:        fill,
		Calibration: InitialCalibration(),
	}, nil
}

// ApplyBiasCorrection sets the liquidity multiplier on top of pinned, the
// model the correction was computed from, and advances the generation by one.
// It fails with ErrStaleCalibration if the current model is no longer pinned,
// whether another correction or a retrain replaced it.
func (e *Engine) ApplyBiasCorrection(pinned *Model, multiplier float64) (before, after CalibrationState, err error) {
	if pinned == nil {
		return before, after, fmt.Errorf("%w: no model to correct", ErrValidation)
	}
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier <= 0 {
		return before, after, fmt.Errorf("%w: multiplier must be finite and positive, got %v", ErrValidation, multiplier)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.model.Load()
	if cur == nil {
		return before, after, ErrNotTrained
	}
	before = cur.Calibration
	if cur != pinned {
		return before, before, fmt.Errorf("%w: correction computed at generation %d, current model is at generation %d",
			ErrStaleCalibration, pinned.Calibration.Generation, before.Generation)
	}

	next := *cur
	next.Calibration = CalibrationState{
		Generation:          before.Generation + 1,
		LiquidityMultiplier: multiplier,
	}
	e.model.Store(&next)

	e.logger.Info().
		Int("generation", next.Calibration.Generation).
		Float64("multiplier_before", before.LiquidityMultiplier).
		Float64("multiplier_after", multiplier).
		Msg("bias correction applied")
	return before, next.Calibration, nil
}

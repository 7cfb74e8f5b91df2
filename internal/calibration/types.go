package calibration

import (
	"errors"
	"fmt"
	"math"

	"credit-tca/internal/metrics"
)

// Cause is the attributed source of a cost error.
type Cause string

const (
	// CauseLiquidityImpact means the price reverted after the trade: the excess
	// cost was temporary.
	CauseLiquidityImpact Cause = "LIQUIDITY_IMPACT"
	// CauseModelMisspecification means the excess cost persisted.
	CauseModelMisspecification Cause = "MODEL_MISSPECIFICATION"
)

// Action is what a batch analysis did to the bound engine.
type Action string

const (
	ActionAutoCorrected Action = "AUTO_CORRECTED"
	ActionManualReview  Action = "MANUAL_REVIEW"
	ActionNoAction      Action = "NO_ACTION"
)

// WarningKind classifies report warnings.
type WarningKind string

const (
	// WarningModelDrift flags a material error that must not be auto-corrected.
	WarningModelDrift WarningKind = "MODEL_DRIFT"
	// WarningMultiplierCapped flags a correction blocked by MaxMultiplier.
	WarningMultiplierCapped WarningKind = "MULTIPLIER_CAPPED"
)

// Warning is a non-fatal finding surfaced in the report.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Params configure classification and correction.
type Params struct {
	// Reversion at or above this share of realized cost marks liquidity impact.
	ReversionRatioThreshold float64 `yaml:"reversion_ratio_threshold" split_words:"true"`
	// |mean cost error| must exceed this to act.
	MaterialityBps float64 `yaml:"materiality_bps" split_words:"true"`
	// Relative multiplier step per bps of mean error.
	StepPerBps float64 `yaml:"step_per_bps" split_words:"true"`
	// Cap on one relative step.
	MaxStep float64 `yaml:"max_step" split_words:"true"`
	// Cap on the multiplier itself.
	MaxMultiplier float64 `yaml:"max_multiplier" split_words:"true"`
	// Liquidity-impact share of records must exceed this to auto-correct.
	MajorityFraction float64 `yaml:"majority_fraction" split_words:"true"`
}

// DefaultParams returns the standard calibration parameters.
func DefaultParams() Params {
	return Params{
		ReversionRatioThreshold: 0.5,
		MaterialityBps:          2,
		StepPerBps:              0.01,
		MaxStep:                 0.5,
		MaxMultiplier:           5,
		MajorityFraction:        0.5,
	}
}

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid calibration params")

// Validate checks parameter ranges.
func (p Params) Validate() error {
	for _, v := range []float64{p.ReversionRatioThreshold, p.MaterialityBps, p.StepPerBps, p.MaxStep, p.MaxMultiplier, p.MajorityFraction} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidParams)
		}
	}
	switch {
	case p.ReversionRatioThreshold <= 0:
		return fmt.Errorf("%w: reversion_ratio_threshold must be positive", ErrInvalidParams)
	case p.MaterialityBps < 0:
		return fmt.Errorf("%w: materiality_bps must be non-negative", ErrInvalidParams)
	case p.StepPerBps <= 0 || p.MaxStep <= 0:
		return fmt.Errorf("%w: step sizes must be positive", ErrInvalidParams)
	case p.MaxMultiplier < 1:
		return fmt.Errorf("%w: max_multiplier must be at least 1", ErrInvalidParams)
	case p.MajorityFraction < 0 || p.MajorityFraction >= 1:
		return fmt.Errorf("%w: majority_fraction must be in [0, 1)", ErrInvalidParams)
	}
	return nil
}

// RecordDiagnostic is the per-record part of a Report.
type RecordDiagnostic struct {
	RecordID       string  `json:"record_id"`
	InstrumentID   string  `json:"instrument_id,omitempty"`
	CostErrorBps   float64 `json:"cost_error_bps"`
	ReversionRatio float64 `json:"reversion_ratio"`
	Cause          Cause   `json:"cause"`
}

// Report is the structured result of one batch analysis.
type Report struct {
	RunID    string `json:"run_id"`
	EngineID string `json:"engine_id"`

	RecordCount             int             `json:"record_count"`
	MeanCostErrorBps        float64         `json:"mean_cost_error_bps"`
	CostError               metrics.Summary `json:"cost_error"`
	LiquidityImpactCount    int             `json:"liquidity_impact_count"`
	MisspecificationCount   int             `json:"misspecification_count"`
	LiquidityImpactFraction float64         `json:"liquidity_impact_fraction"`

	// Share of total positive cost error carried by liquidity-impact records.
	LiquidityErrorShare float64 `json:"liquidity_error_share"`

	Action           Action  `json:"action"`
	MultiplierBefore float64 `json:"multiplier_before"`
	MultiplierAfter  float64 `json:"multiplier_after"`
	GenerationBefore int     `json:"generation_before"`
	GenerationAfter  int     `json:"generation_after"`

	Warnings []Warning          `json:"warnings,omitempty"`
	Records  []RecordDiagnostic `json:"records"`
}

// HasWarning reports whether the report carries a warning of the given kind.
func (r *Report) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

package tca

import "fmt"

// State is the lifecycle state of an Engine.
type State int

const (
	StateUntrained State = iota
	StateTrained
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUntrained:
		return "UNTRAINED"
	case StateTrained:
		return "TRAINED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FittedCostModel holds the spread and impact coefficients.
type FittedCostModel struct {
	SpreadCoef             float64            `json:"spread_coef"`
	ImpactCoef             float64            `json:"impact_coef"`
	TrendSensitivity       float64            `json:"trend_sensitivity"`
	ReferenceVolatilityBps float64            `json:"reference_volatility_bps"`
	TierVolatilityBps      map[string]float64 `json:"tier_volatility_bps,omitempty"`
	OutcomeRows            int                `json:"outcome_rows"`
	Fitted                 bool               `json:"fitted"` // false when defaults were used
}

// FittedFillModel holds the logistic fill-probability coefficients.
type FittedFillModel struct {
	Intercept     float64 `json:"intercept"`
	SizeCoef      float64 `json:"size_coef"`      // >= 0
	AlignmentCoef float64 `json:"alignment_coef"` // >= 0
	OutcomeRows   int     `json:"outcome_rows"`
	Fitted        bool    `json:"fitted"`
}

// CalibrationState is the versioned liquidity-impact bias correction.
type CalibrationState struct {
	Generation          int     `json:"generation"`
	LiquidityMultiplier float64 `json:"liquidity_multiplier"`
}

// InitialCalibration is the state right after training.
func InitialCalibration() CalibrationState {
	return CalibrationState{Generation: 0, LiquidityMultiplier: 1}
}

// Model is an immutable snapshot of everything an evaluation reads.
// A new Model is built on every write and swapped atomically.
type Model struct {
	EngineID    string           `json:"engine_id"`
	TrainedRows int              `json:"trained_rows"`
	SkippedRows int              `json:"skipped_rows"`
	Cost        FittedCostModel  `json:"cost"`
	Fill        FittedFillModel  `json:"fill"`
	Calibration CalibrationState `json:"calibration"`
}

// volatilityFor resolves the volatility used for impact: the row value when
// positive, else the tier median, else the training reference.
func (c *FittedCostModel) volatilityFor(vol *float64, tier string) float64 {
	if vol != nil && *vol > 0 {
		return *vol
	}
	if v, ok := c.TierVolatilityBps[tier]; ok && tier != "" {
		return v
	}
	return c.ReferenceVolatilityBps
}

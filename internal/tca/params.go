package tca

import (
	"fmt"
	"math"

	"credit-tca/internal/decision"
)

// Params configure training defaults and the trade decision rule.
type Params struct {
	// Cost model defaults, used when too few outcome rows are available.
	DefaultSpreadCoef    float64 `yaml:"default_spread_coef" split_words:"true"`
	DefaultImpactCoef    float64 `yaml:"default_impact_coef" split_words:"true"`
	DefaultVolatilityBps float64 `yaml:"default_volatility_bps" split_words:"true"`

	// TrendSensitivity scales the trend adjustment relative to impact.
	// Must be in [0, 1) so the adjustment never exceeds the impact itself.
	TrendSensitivity float64 `yaml:"trend_sensitivity" split_words:"true"`

	// MinOutcomeRows is the minimum number of historical outcomes required
	// before a regression replaces the defaults.
	MinOutcomeRows int `yaml:"min_outcome_rows" split_words:"true"`

	// Fill model defaults: p = sigmoid(Intercept - SizeCoef*relSize - AlignmentCoef*alignment)
	DefaultFillIntercept     float64 `yaml:"default_fill_intercept" split_words:"true"`
	DefaultFillSizeCoef      float64 `yaml:"default_fill_size_coef" split_words:"true"`
	DefaultFillAlignmentCoef float64 `yaml:"default_fill_alignment_coef" split_words:"true"`
	FillRegularization       float64 `yaml:"fill_regularization" split_words:"true"`

	// Decision rule
	MinNetEdgeBps      float64 `yaml:"min_net_edge_bps" split_words:"true"`
	MinFillProbability float64 `yaml:"min_fill_probability" split_words:"true"`
}

// DefaultParams returns the standard engine parameters.
func DefaultParams() Params {
	return Params{
		DefaultSpreadCoef:        1.0,
		DefaultImpactCoef:        1.0,
		DefaultVolatilityBps:     50,
		TrendSensitivity:         0.5,
		MinOutcomeRows:           10,
		DefaultFillIntercept:     2.0,
		DefaultFillSizeCoef:      1.5,
		DefaultFillAlignmentCoef: 0.5,
		FillRegularization:       0.01,
		MinNetEdgeBps:            0,
		MinFillProbability:       0.5,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"default_spread_coef":         p.DefaultSpreadCoef,
		"default_impact_coef":         p.DefaultImpactCoef,
		"default_volatility_bps":      p.DefaultVolatilityBps,
		"trend_sensitivity":           p.TrendSensitivity,
		"default_fill_intercept":      p.DefaultFillIntercept,
		"default_fill_size_coef":      p.DefaultFillSizeCoef,
		"default_fill_alignment_coef": p.DefaultFillAlignmentCoef,
		"fill_regularization":         p.FillRegularization,
		"min_net_edge_bps":            p.MinNetEdgeBps,
		"min_fill_probability":        p.MinFillProbability,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrValidation, name)
		}
	}
	if p.DefaultSpreadCoef <= 0 || p.DefaultImpactCoef <= 0 {
		return fmt.Errorf("%w: default cost coefficients must be positive", ErrValidation)
	}
	if p.DefaultVolatilityBps <= 0 {
		return fmt.Errorf("%w: default_volatility_bps must be positive", ErrValidation)
	}
	if p.TrendSensitivity < 0 || p.TrendSensitivity >= 1 {
		return fmt.Errorf("%w: trend_sensitivity must be in [0, 1)", ErrValidation)
	}
	if p.MinOutcomeRows < 3 {
		return fmt.Errorf("%w: min_outcome_rows must be at least 3", ErrValidation)
	}
	if p.DefaultFillSizeCoef < 0 || p.DefaultFillAlignmentCoef < 0 || p.FillRegularization < 0 {
		return fmt.Errorf("%w: fill coefficients must be non-negative", ErrValidation)
	}
	if err := p.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Thresholds returns the decision gate thresholds.
func (p Params) Thresholds() decision.Thresholds {
	return decision.Thresholds{
		MinNetEdgeBps:      p.MinNetEdgeBps,
		MinFillProbability: p.MinFillProbability,
	}
}

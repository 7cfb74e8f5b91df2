package domain

// StressScenario represents market-condition perturbation parameters
// applied to snapshots before re-evaluation.
type StressScenario struct {
	ScenarioID           string  // "optimistic" | "realistic" | "pessimistic" | "degraded"
	SpreadMultiplier     float64 // applied to the quoted spread
	LiquidityMultiplier  float64 // applied to available size
	VolatilityMultiplier float64 // applied to the volatility proxy
}

// Scenario ID constants
const (
	ScenarioOptimistic  = "optimistic"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
	ScenarioDegraded    = "degraded"
)

// Predefined stress scenarios. Realistic is the unperturbed baseline.
var (
	StressScenarioOptimistic = StressScenario{
		ScenarioID:           ScenarioOptimistic,
		SpreadMultiplier:     0.8,
		LiquidityMultiplier:  1.25,
		VolatilityMultiplier: 0.9,
	}

	StressScenarioRealistic = StressScenario{
		ScenarioID:           ScenarioRealistic,
		SpreadMultiplier:     1.0,
		LiquidityMultiplier:  1.0,
		VolatilityMultiplier: 1.0,
	}

	StressScenarioPessimistic = StressScenario{
		ScenarioID:           ScenarioPessimistic,
		SpreadMultiplier:     1.5,
		LiquidityMultiplier:  0.6,
		VolatilityMultiplier: 1.3,
	}

	StressScenarioDegraded = StressScenario{
		ScenarioID:           ScenarioDegraded,
		SpreadMultiplier:     2.5,
		LiquidityMultiplier:  0.3,
		VolatilityMultiplier: 2.0,
	}
)

// DefaultStressScenarios returns the predefined scenarios in severity order.
func DefaultStressScenarios() []StressScenario {
	return []StressScenario{
		StressScenarioOptimistic,
		StressScenarioRealistic,
		StressScenarioPessimistic,
		StressScenarioDegraded,
	}
}

// Apply returns a copy of the snapshot with the scenario multipliers applied.
// The bid/ask prices are dropped so the perturbed spread is authoritative.
func (sc StressScenario) Apply(s MarketSnapshot) MarketSnapshot {
	out := s
	out.SpreadBps = s.QuotedSpreadBps() * sc.SpreadMultiplier
	out.Bid, out.Ask = 0, 0
	out.AvailableSize = s.AvailableSize * sc.LiquidityMultiplier
	if s.VolatilityBps != nil {
		v := *s.VolatilityBps * sc.VolatilityMultiplier
		out.VolatilityBps = &v
	}
	return out
}

// Validate checks that every multiplier is finite and positive.
func (sc StressScenario) Validate() error {
	if sc.ScenarioID == "" {
		return ErrInvalidInput
	}
	for _, m := range []float64{sc.SpreadMultiplier, sc.LiquidityMultiplier, sc.VolatilityMultiplier} {
		if !isFinite(m) {
			return ErrNonFinite
		}
		if m <= 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

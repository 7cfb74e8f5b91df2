package stress

import (
	"credit-tca/internal/decision"
	"credit-tca/internal/metrics"
)

// ScenarioResult aggregates one scenario's evaluations.
type ScenarioResult struct {
	ScenarioID           string  `json:"scenario_id"`
	SpreadMultiplier     float64 `json:"spread_multiplier"`
	LiquidityMultiplier  float64 `json:"liquidity_multiplier"`
	VolatilityMultiplier float64 `json:"volatility_multiplier"`

	Evaluated int `json:"evaluated"`
	Rejected  int `json:"rejected"` // snapshots that failed validation
	BuyCount  int `json:"buy_count"`
	SellCount int `json:"sell_count"`
	HoldCount int `json:"hold_count"`

	TradeRate        float64         `json:"trade_rate"`
	MeanNetEdgeBps   float64         `json:"mean_net_edge_bps"`
	MeanProbFill     float64         `json:"mean_prob_fill"`
	CostBps          metrics.Summary `json:"cost_bps"`
	NetEdgeBps       metrics.Summary `json:"net_edge_bps"`
	Flips            int             `json:"flips"`     // decisions differing from the realistic baseline
	FlipRate         float64         `json:"flip_rate"` // Flips / snapshots valid in both
	ComparedToBase   int             `json:"compared_to_base"`
	MeanCostDeltaBps float64         `json:"mean_cost_delta_bps"` // mean cost minus realistic mean cost
}

// Report is the output of Run.
type Report struct {
	EngineID              string  `json:"engine_id"`
	CalibrationGeneration int     `json:"calibration_generation"`
	LiquidityMultiplier   float64 `json:"liquidity_multiplier"`
	SnapshotCount         int     `json:"snapshot_count"`

	TradeSize     float64  `json:"trade_size"`
	TradeSide     string   `json:"trade_side"`
	Trend         float64  `json:"trend"`
	AlphaBps      float64  `json:"alpha_bps"`
	OverallFlip   float64  `json:"overall_flip_rate"`
	ScenarioOrder []string `json:"scenario_order"`

	Scenarios []ScenarioResult `json:"scenarios"`

	// Stability is nil unless realistic, pessimistic and degraded all ran.
	Stability *decision.DecisionResult `json:"stability,omitempty"`
}

// Scenario returns the result for id, or nil.
func (r *Report) Scenario(id string) *ScenarioResult {
	for i := range r.Scenarios {
		if r.Scenarios[i].ScenarioID == id {
			return &r.Scenarios[i]
		}
	}
	return nil
}

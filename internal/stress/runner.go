// Package stress re-evaluates a trade under perturbed market conditions and
// gates the decision on its stability across scenarios.
package stress

import (
	"fmt"

	"credit-tca/internal/decision"
	"credit-tca/internal/domain"
	"credit-tca/internal/metrics"
	"credit-tca/internal/tca"
)

// Run evaluates req against every snapshot under each scenario, using one
// model snapshot throughout. An empty scenario list means
// domain.DefaultStressScenarios. The realistic scenario is always evaluated
// as the baseline for flip counting, and prepended when missing.
func Run(engine *tca.Engine, snapshots []domain.MarketSnapshot, req domain.TradeRequest, scenarios []domain.StressScenario) (*Report, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", tca.ErrValidation)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshots to stress", tca.ErrInsufficientData)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", tca.ErrValidation, err)
	}
	scenarios, err := normalizeScenarios(scenarios)
	if err != nil {
		return nil, err
	}

	model, err := engine.Model()
	if err != nil {
		return nil, err
	}

	// decisions[s][i] is the decision of snapshot i under scenario s ("" when rejected).
	decisions := make([][]decision.Action, len(scenarios))
	results := make([]ScenarioResult, len(scenarios))
	meanCost := make([]float64, len(scenarios))

	for s, sc := range scenarios {
		perturbed := make([]domain.MarketSnapshot, len(snapshots))
		for i := range snapshots {
			perturbed[i] = sc.Apply(snapshots[i])
		}
		items, err := engine.EvaluateWithModel(model, perturbed, req)
		if err != nil {
			return nil, err
		}
		decisions[s], results[s], meanCost[s] = aggregate(sc, items)
	}

	base := 0 // normalizeScenarios guarantees realistic first
	if results[base].Evaluated == 0 {
		return nil, fmt.Errorf("%w: no snapshot passed validation", tca.ErrInsufficientData)
	}

	var flips, compared int
	for s := range scenarios {
		r := &results[s]
		r.MeanCostDeltaBps = meanCost[s] - meanCost[base]
		for i := range snapshots {
			a, b := decisions[base][i], decisions[s][i]
			if a == "" || b == "" {
				continue
			}
			r.ComparedToBase++
			if a != b {
				r.Flips++
			}
		}
		if r.ComparedToBase > 0 {
			r.FlipRate = float64(r.Flips) / float64(r.ComparedToBase)
		}
		if s != base {
			flips += r.Flips
			compared += r.ComparedToBase
		}
	}

	report := &Report{
		EngineID:              model.EngineID,
		CalibrationGeneration: model.Calibration.Generation,
		LiquidityMultiplier:   model.Calibration.LiquidityMultiplier,
		SnapshotCount:         len(snapshots),
		TradeSize:             req.Size,
		TradeSide:             req.Side.String(),
		Trend:                 req.Trend,
		AlphaBps:              req.AlphaBps,
		Scenarios:             results,
	}
	for _, sc := range scenarios {
		report.ScenarioOrder = append(report.ScenarioOrder, sc.ScenarioID)
	}
	if compared > 0 {
		report.OverallFlip = float64(flips) / float64(compared)
	}

	pess := report.Scenario(domain.ScenarioPessimistic)
	degr := report.Scenario(domain.ScenarioDegraded)
	if pess != nil && degr != nil && pess.Evaluated > 0 && degr.Evaluated > 0 {
		evaluator, err := decision.NewEvaluator(engine.Params().Thresholds())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", tca.ErrValidation, err)
		}
		report.Stability = evaluator.EvaluateStability(decision.StabilityInput{
			RealisticMeanEdge:   results[base].MeanNetEdgeBps,
			PessimisticMeanEdge: pess.MeanNetEdgeBps,
			DegradedMeanEdge:    degr.MeanNetEdgeBps,
			FlipRate:            report.OverallFlip,
		})
	}
	return report, nil
}

// normalizeScenarios validates the list, rejects duplicate ids and moves the
// realistic scenario to the front.
func normalizeScenarios(in []domain.StressScenario) ([]domain.StressScenario, error) {
	if len(in) == 0 {
		in = domain.DefaultStressScenarios()
	}
	out := make([]domain.StressScenario, 0, len(in)+1)
	seen := make(map[string]bool, len(in))
	var realistic *domain.StressScenario
	for i := range in {
		sc := in[i]
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", tca.ErrValidation, err)
		}
		if seen[sc.ScenarioID] {
			return nil, fmt.Errorf("%w: duplicate scenario %q", tca.ErrValidation, sc.ScenarioID)
		}
		seen[sc.ScenarioID] = true
		if sc.ScenarioID == domain.ScenarioRealistic {
			realistic = &sc
			continue
		}
		out = append(out, sc)
	}
	if realistic == nil {
		r := domain.StressScenarioRealistic
		realistic = &r
	}
	return append([]domain.StressScenario{*realistic}, out...), nil
}

func aggregate(sc domain.StressScenario, items []tca.BatchItem) ([]decision.Action, ScenarioResult, float64) {
	res := ScenarioResult{
		ScenarioID:           sc.ScenarioID,
		SpreadMultiplier:     sc.SpreadMultiplier,
		LiquidityMultiplier:  sc.LiquidityMultiplier,
		VolatilityMultiplier: sc.VolatilityMultiplier,
	}
	actions := make([]decision.Action, len(items))
	costs := make([]float64, 0, len(items))
	edges := make([]float64, 0, len(items))
	fills := make([]float64, 0, len(items))

	for i, item := range items {
		if item.Err != nil {
			res.Rejected++
			continue
		}
		r := item.Result
		actions[i] = r.Decision
		res.Evaluated++
		switch r.Decision {
		case decision.ActionBuy:
			res.BuyCount++
		case decision.ActionSell:
			res.SellCount++
		default:
			res.HoldCount++
		}
		costs = append(costs, r.CostBps)
		edges = append(edges, r.NetEdgeBps)
		fills = append(fills, r.ProbFill)
	}

	res.CostBps = metrics.Summarize(costs)
	res.NetEdgeBps = metrics.Summarize(edges)
	res.MeanNetEdgeBps = res.NetEdgeBps.Mean
	res.MeanProbFill = metrics.Mean(fills)
	if res.Evaluated > 0 {
		res.TradeRate = float64(res.BuyCount+res.SellCount) / float64(res.Evaluated)
	}
	return actions, res, res.CostBps.Mean
}

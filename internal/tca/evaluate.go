package tca

import (
	"fmt"

	"credit-tca/internal/decision"
	"credit-tca/internal/domain"
)

// EvaluationResult is the outcome of one pre-trade evaluation.
type EvaluationResult struct {
	Decision   decision.Action            `json:"decision"`
	AlphaBps   float64                    `json:"alpha_bps"`
	CostBps    float64                    `json:"cost_bps"`
	ProbFill   float64                    `json:"prob_fill"`
	NetEdgeBps float64                    `json:"net_edge_bps"`
	Breakdown  CostBreakdown              `json:"breakdown"`
	Criteria   []decision.CriterionResult `json:"criteria"`

	// Calibration the result was computed under.
	CalibrationGeneration int     `json:"calibration_generation"`
	LiquidityMultiplier   float64 `json:"liquidity_multiplier"`
}

// EvaluateTradeOpportunity estimates cost, fill probability and net edge of
// a proposed trade and returns BUY/SELL/HOLD. It has no effect on model state.
func (e *Engine) EvaluateTradeOpportunity(snapshot domain.MarketSnapshot, req domain.TradeRequest) (*EvaluationResult, error) {
	model := e.model.Load()
	if model == nil {
		e.metrics.RecordEvaluationError("not_trained")
		return nil, ErrNotTrained
	}
	res, err := e.evaluate(model, &snapshot, req)
	if err != nil {
		e.metrics.RecordEvaluationError("validation")
		return nil, err
	}
	e.metrics.RecordEvaluation(string(res.Decision), res.CostBps, res.ProbFill)
	return res, nil
}

// BatchItem is one entry of EvaluateBatch.
type BatchItem struct {
	Result *EvaluationResult
	Err    error
}

// EvaluateBatch evaluates one request against many snapshots using a single
// model snapshot, so every item shares the same calibration generation.
func (e *Engine) EvaluateBatch(snapshots []domain.MarketSnapshot, req domain.TradeRequest) ([]BatchItem, *Model, error) {
	model := e.model.Load()
	if model == nil {
		return nil, nil, ErrNotTrained
	}
	return e.evaluateAll(model, snapshots, req), model, nil
}

// EvaluateWithModel is EvaluateBatch pinned to a model previously obtained
// from Model or EvaluateBatch. Callers use it to compare several batches
// under one calibration generation.
func (e *Engine) EvaluateWithModel(model *Model, snapshots []domain.MarketSnapshot, req domain.TradeRequest) ([]BatchItem, error) {
	if model == nil {
		return nil, ErrNotTrained
	}
	return e.evaluateAll(model, snapshots, req), nil
}

func (e *Engine) evaluateAll(model *Model, snapshots []domain.MarketSnapshot, req domain.TradeRequest) []BatchItem {
	items := make([]BatchItem, len(snapshots))
	for i := range snapshots {
		res, err := e.evaluate(model, &snapshots[i], req)
		items[i] = BatchItem{Result: res, Err: err}
	}
	return items
}

func (e *Engine) evaluate(model *Model, snapshot *domain.MarketSnapshot, req domain.TradeRequest) (*EvaluationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	cost, breakdown := model.Cost.estimate(snapshot, req, model.Calibration.LiquidityMultiplier)
	probFill := model.Fill.probability(breakdown.RelativeSize, breakdown.Alignment)
	netEdge := req.AlphaBps - cost

	verdict, err := e.evaluator.EvaluateTrade(decision.TradeInput{
		Side:       req.Side,
		NetEdgeBps: netEdge,
		ProbFill:   probFill,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return &EvaluationResult{
		Decision:              verdict.Action,
		AlphaBps:              req.AlphaBps,
		CostBps:               cost,
		ProbFill:              probFill,
		NetEdgeBps:            netEdge,
		Breakdown:             breakdown,
		Criteria:              verdict.Criteria,
		CalibrationGeneration: model.Calibration.Generation,
		LiquidityMultiplier:   model.Calibration.LiquidityMultiplier,
	}, nil
}

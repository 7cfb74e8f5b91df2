package decision

import "fmt"

// Stability gate thresholds.
const (
	MinPessimisticRatio = 0.5
	MaxFlipRate         = 0.5
)

// Evaluator evaluates decision criteria.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(thresholds Thresholds) (*Evaluator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{thresholds: thresholds}, nil
}

// Thresholds returns the configured trade thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// EvaluateTrade returns the requested side when the net edge clears
// MinNetEdgeBps and the fill probability reaches MinFillProbability.
// Any failed criterion yields HOLD.
func (e *Evaluator) EvaluateTrade(input TradeInput) (*TradeDecision, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	criteria := []CriterionResult{
		{
			Name:      "Net edge",
			Threshold: fmt.Sprintf("> %.2f bps", e.thresholds.MinNetEdgeBps),
			Actual:    fmt.Sprintf("%.4f bps", input.NetEdgeBps),
			Pass:      input.NetEdgeBps > e.thresholds.MinNetEdgeBps,
		},
		{
			Name:      "Fill probability",
			Threshold: fmt.Sprintf(">= %.2f", e.thresholds.MinFillProbability),
			Actual:    fmt.Sprintf("%.4f", input.ProbFill),
			Pass:      input.ProbFill >= e.thresholds.MinFillProbability,
		},
	}

	action := ActionHold
	if allPass(criteria) {
		action = Action(input.Side)
	}

	return &TradeDecision{Action: action, Criteria: criteria}, nil
}

// EvaluateStability produces DecisionResult from StabilityInput.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) EvaluateStability(input StabilityInput) *DecisionResult {
	goCriteria := evaluateGOCriteria(input)
	nogoChecks := evaluateNOGOTriggers(input)

	decision := DecisionGO
	if !allPass(goCriteria) || !allPass(nogoChecks) {
		decision = DecisionNOGO
	}

	return &DecisionResult{
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}
}

func allPass(criteria []CriterionResult) bool {
	for _, c := range criteria {
		if !c.Pass {
			return false
		}
	}
	return true
}

// evaluateGOCriteria evaluates the 3 GO criteria.
func evaluateGOCriteria(input StabilityInput) []CriterionResult {
	criteria := make([]CriterionResult, 3)

	// 1. Realistic mean edge > 0
	criteria[0] = CriterionResult{
		Name:      "Realistic net edge",
		Threshold: "> 0",
		Actual:    fmt.Sprintf("%.4f bps", input.RealisticMeanEdge),
		Pass:      input.RealisticMeanEdge > 0,
	}

	// 2. Survives pessimistic: PessimisticMeanEdge > 0 AND ratio >= 0.5
	stabilityPass := false
	var stabilityActual string
	if input.RealisticMeanEdge > 0 {
		ratio := input.PessimisticMeanEdge / input.RealisticMeanEdge
		stabilityPass = input.PessimisticMeanEdge > 0 && ratio >= MinPessimisticRatio
		stabilityActual = fmt.Sprintf("PessimisticEdge=%.4f, Ratio=%.2f", input.PessimisticMeanEdge, ratio)
	} else {
		stabilityActual = fmt.Sprintf("PessimisticEdge=%.4f, RealisticEdge=%.4f", input.PessimisticMeanEdge, input.RealisticMeanEdge)
	}
	criteria[1] = CriterionResult{
		Name:      "Stable under pessimistic conditions",
		Threshold: fmt.Sprintf("PessimisticEdge > 0 AND ratio >= %.1f", MinPessimisticRatio),
		Actual:    stabilityActual,
		Pass:      stabilityPass,
	}

	// 3. Decisions do not flip too often
	criteria[2] = CriterionResult{
		Name:      "Decision stability",
		Threshold: fmt.Sprintf("flip rate <= %.2f", MaxFlipRate),
		Actual:    fmt.Sprintf("%.4f", input.FlipRate),
		Pass:      input.FlipRate <= MaxFlipRate,
	}

	return criteria
}

// evaluateNOGOTriggers evaluates the 2 NO-GO triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func evaluateNOGOTriggers(input StabilityInput) []CriterionResult {
	checks := make([]CriterionResult, 2)

	triggered1 := input.RealisticMeanEdge <= 0
	checks[0] = CriterionResult{
		Name:      "Non-positive realistic edge",
		Threshold: "<= 0",
		Actual:    fmt.Sprintf("%.4f bps", input.RealisticMeanEdge),
		Pass:      !triggered1,
	}

	// Edge disappears: RealisticMean > 0 && DegradedMean <= 0 triggers NO-GO
	triggered2 := input.RealisticMeanEdge > 0 && input.DegradedMeanEdge <= 0
	checks[1] = CriterionResult{
		Name:      "Edge disappears under degradation",
		Threshold: "RealisticEdge > 0 AND DegradedEdge <= 0",
		Actual:    fmt.Sprintf("RealisticEdge=%.4f, DegradedEdge=%.4f", input.RealisticMeanEdge, input.DegradedMeanEdge),
		Pass:      !triggered2,
	}

	return checks
}

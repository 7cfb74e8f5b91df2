package decision

import (
	"errors"
	"math"
	"testing"

	"credit-tca/internal/domain"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultThresholds())
	if err != nil {
		t.Fatalf("NewEvaluator failed: %v", err)
	}
	return e
}

func TestEvaluateTrade(t *testing.T) {
	evaluator := newTestEvaluator(t)

	tests := []struct {
		name       string
		input      TradeInput
		wantAction Action
	}{
		{"buy with edge and fill", TradeInput{Side: domain.SideBuy, NetEdgeBps: 3.2, ProbFill: 0.7}, ActionBuy},
		{"sell with edge and fill", TradeInput{Side: domain.SideSell, NetEdgeBps: 0.1, ProbFill: 0.5}, ActionSell},
		{"zero edge holds", TradeInput{Side: domain.SideBuy, NetEdgeBps: 0, ProbFill: 0.9}, ActionHold},
		{"negative edge holds", TradeInput{Side: domain.SideBuy, NetEdgeBps: -4, ProbFill: 0.9}, ActionHold},
		{"low fill holds", TradeInput{Side: domain.SideSell, NetEdgeBps: 10, ProbFill: 0.49}, ActionHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.EvaluateTrade(tt.input)
			if err != nil {
				t.Fatalf("EvaluateTrade failed: %v", err)
			}
			if result.Action != tt.wantAction {
				t.Errorf("Expected %s, got %s", tt.wantAction, result.Action)
			}
			if len(result.Criteria) != 2 {
				t.Errorf("Expected 2 criteria, got %d", len(result.Criteria))
			}
		})
	}
}

func TestEvaluateTrade_InvalidInput(t *testing.T) {
	evaluator := newTestEvaluator(t)

	if _, err := evaluator.EvaluateTrade(TradeInput{Side: "HOLD", NetEdgeBps: 1, ProbFill: 1}); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
	if _, err := evaluator.EvaluateTrade(TradeInput{Side: domain.SideBuy, NetEdgeBps: math.NaN(), ProbFill: 1}); !errors.Is(err, ErrNonFiniteInput) {
		t.Errorf("expected ErrNonFiniteInput, got %v", err)
	}
}

func TestNewEvaluator_InvalidThresholds(t *testing.T) {
	if _, err := NewEvaluator(Thresholds{MinFillProbability: 1.5}); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := NewEvaluator(Thresholds{MinNetEdgeBps: math.Inf(1), MinFillProbability: 0.5}); !errors.Is(err, ErrNonFiniteInput) {
		t.Errorf("expected ErrNonFiniteInput, got %v", err)
	}
}

func TestEvaluateStability_GO(t *testing.T) {
	evaluator := newTestEvaluator(t)

	result := evaluator.EvaluateStability(StabilityInput{
		RealisticMeanEdge:   8,
		PessimisticMeanEdge: 5, // ratio = 0.625 >= 0.5
		DegradedMeanEdge:    1,
		FlipRate:            0.2,
	})

	if result.Decision != DecisionGO {
		t.Errorf("Expected GO, got %s", result.Decision)
	}
	for i, c := range result.GOCriteria {
		if !c.Pass {
			t.Errorf("GO criterion %d (%s) should pass, got fail", i+1, c.Name)
		}
	}
	for i, c := range result.NOGOChecks {
		if !c.Pass {
			t.Errorf("NO-GO trigger %d (%s) should not be triggered", i+1, c.Name)
		}
	}
}

func TestEvaluateStability_NOGO(t *testing.T) {
	evaluator := newTestEvaluator(t)

	tests := []struct {
		name  string
		input StabilityInput
	}{
		{"negative realistic edge", StabilityInput{RealisticMeanEdge: -1, PessimisticMeanEdge: -3, DegradedMeanEdge: -8}},
		{"pessimistic ratio too low", StabilityInput{RealisticMeanEdge: 10, PessimisticMeanEdge: 4, DegradedMeanEdge: 1}},
		{"edge disappears under degradation", StabilityInput{RealisticMeanEdge: 10, PessimisticMeanEdge: 6, DegradedMeanEdge: 0}},
		{"too many flips", StabilityInput{RealisticMeanEdge: 10, PessimisticMeanEdge: 6, DegradedMeanEdge: 2, FlipRate: 0.75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluator.EvaluateStability(tt.input)
			if result.Decision != DecisionNOGO {
				t.Errorf("Expected NO-GO, got %s", result.Decision)
			}
		})
	}
}

package decision

import (
	"errors"
	"math"

	"credit-tca/internal/domain"
)

// Action is the trade recommendation for one evaluated opportunity.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision represents the GO/NO-GO result of the stability gate.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Validation errors
var (
	ErrInvalidSide      = errors.New("trade side must be BUY or SELL")
	ErrNonFiniteInput   = errors.New("decision input is NaN or infinite")
	ErrInvalidThreshold = errors.New("fill probability threshold must be in [0, 1]")
)

// Thresholds configure the trade rule.
type Thresholds struct {
	MinNetEdgeBps      float64 // net edge must be strictly greater
	MinFillProbability float64 // fill probability must be at least this
}

// DefaultThresholds returns the standard trade rule: positive edge, even-odds fill.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinNetEdgeBps:      0,
		MinFillProbability: 0.5,
	}
}

// Validate checks the thresholds.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.MinNetEdgeBps) || math.IsInf(t.MinNetEdgeBps, 0) {
		return ErrNonFiniteInput
	}
	if !(t.MinFillProbability >= 0 && t.MinFillProbability <= 1) {
		return ErrInvalidThreshold
	}
	return nil
}

// TradeInput contains the evaluated numbers for one trade.
type TradeInput struct {
	Side       domain.Side
	NetEdgeBps float64
	ProbFill   float64
}

// Validate checks the trade input.
func (in TradeInput) Validate() error {
	if !in.Side.IsValid() {
		return ErrInvalidSide
	}
	if math.IsNaN(in.NetEdgeBps) || math.IsInf(in.NetEdgeBps, 0) || math.IsNaN(in.ProbFill) {
		return ErrNonFiniteInput
	}
	return nil
}

// StabilityInput contains per-scenario mean net edges for the stability gate.
type StabilityInput struct {
	RealisticMeanEdge   float64
	PessimisticMeanEdge float64
	DegradedMeanEdge    float64

	// Share of snapshots whose action differs from the realistic baseline
	// in any scenario.
	FlipRate float64
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// TradeDecision contains the trade action with checklist.
type TradeDecision struct {
	Action   Action
	Criteria []CriterionResult
}

// DecisionResult contains the stability decision with checklist.
type DecisionResult struct {
	Decision   Decision          `json:"decision"`
	GOCriteria []CriterionResult `json:"go_criteria"`
	NOGOChecks []CriterionResult `json:"nogo_checks"`
}

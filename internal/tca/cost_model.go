package tca

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"credit-tca/internal/domain"
	"credit-tca/internal/metrics"
)

// Coefficient floors keep cost monotone in spread and size after fitting.
const (
	minSpreadCoef = 0.05
	minImpactCoef = 0.01
)

// Estimates saturate so extreme but finite inputs still yield a finite cost.
const (
	maxRelativeSize = 1e6
	maxCostBps      = 1e12
)

// CostBreakdown itemizes an estimated cost.
type CostBreakdown struct {
	BaseCostBps        float64 `json:"base_cost_bps"`
	ImpactBps          float64 `json:"impact_bps"`
	TrendAdjustmentBps float64 `json:"trend_adjustment_bps"`
	RelativeSize       float64 `json:"relative_size"`
	VolatilityBps      float64 `json:"volatility_bps"`
	Alignment          float64 `json:"alignment"`
}

// estimate computes cost for a validated snapshot and request.
func (c *FittedCostModel) estimate(snap *domain.MarketSnapshot, req domain.TradeRequest, multiplier float64) (float64, CostBreakdown) {
	relSize := math.Min(req.Size/snap.AvailableSize, maxRelativeSize)
	vol := c.volatilityFor(snap.VolatilityBps, snap.RiskTier)
	alignment := req.Alignment()

	b := CostBreakdown{
		BaseCostBps:   saturate(c.SpreadCoef * snap.QuotedSpreadBps() / 2),
		RelativeSize:  relSize,
		VolatilityBps: vol,
		Alignment:     alignment,
	}
	b.ImpactBps = saturate(c.ImpactCoef * vol * math.Sqrt(relSize) * multiplier)
	if alignment != 0 {
		b.TrendAdjustmentBps = saturate(b.ImpactBps * c.TrendSensitivity * alignment)
	}

	cost := b.BaseCostBps + b.ImpactBps + b.TrendAdjustmentBps
	return math.Min(maxCostBps, math.Max(0, cost)), b
}

// saturate clamps v to [-maxCostBps, maxCostBps], mapping NaN to the ceiling.
func saturate(v float64) float64 {
	if math.IsNaN(v) || v > maxCostBps {
		return maxCostBps
	}
	return math.Max(-maxCostBps, v)
}

// fitCostModel estimates the reference volatilities from every usable row and,
// given enough outcome rows, regresses realized cost on
// (half spread, vol*sqrt(size/liquidity)) by least squares.
func fitCostModel(rows []*domain.MarketSnapshot, p Params) (FittedCostModel, error) {
	model := FittedCostModel{
		SpreadCoef:             p.DefaultSpreadCoef,
		ImpactCoef:             p.DefaultImpactCoef,
		TrendSensitivity:       p.TrendSensitivity,
		ReferenceVolatilityBps: p.DefaultVolatilityBps,
	}

	var vols []float64
	tierVols := make(map[string][]float64)
	for _, r := range rows {
		if r.VolatilityBps == nil || *r.VolatilityBps <= 0 {
			continue
		}
		vols = append(vols, *r.VolatilityBps)
		if r.RiskTier != "" {
			tierVols[r.RiskTier] = append(tierVols[r.RiskTier], *r.VolatilityBps)
		}
	}
	if med, ok := metrics.Median(vols); ok {
		model.ReferenceVolatilityBps = med
	}
	if len(tierVols) > 0 {
		model.TierVolatilityBps = make(map[string]float64, len(tierVols))
		for tier, v := range tierVols {
			med, _ := metrics.Median(v)
			model.TierVolatilityBps[tier] = med
		}
	}

	var outcomes []*domain.MarketSnapshot
	for _, r := range rows {
		if r.HasCostOutcome() {
			outcomes = append(outcomes, r)
		}
	}
	model.OutcomeRows = len(outcomes)
	if len(outcomes) < p.MinOutcomeRows {
		return model, nil
	}

	n := len(outcomes)
	x := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i, r := range outcomes {
		vol := model.volatilityFor(r.VolatilityBps, r.RiskTier)
		x.Set(i, 0, r.QuotedSpreadBps()/2)
		x.Set(i, 1, vol*math.Sqrt(*r.TradeSize/r.AvailableSize))
		y.SetVec(i, *r.RealizedCostBps)
	}

	var qr mat.QR
	qr.Factorize(x)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return model, err
	}

	a, b := beta.AtVec(0), beta.AtVec(1)
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return model, errNonFiniteFit
	}
	model.SpreadCoef = math.Max(minSpreadCoef, a)
	model.ImpactCoef = math.Max(minImpactCoef, b)
	model.Fitted = true
	return model, nil
}

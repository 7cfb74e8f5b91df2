package tca

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"credit-tca/internal/domain"
)

func f64(v float64) *float64 { return &v }

func sidePtr(s domain.Side) *domain.Side { return &s }

func boolPtr(b bool) *bool { return &b }

// Coefficients the synthetic history is generated from.
const (
	trueSpreadCoef = 0.9
	trueImpactCoef = 0.8
)

// historicalRows builds a deterministic RFQ history. Realized costs follow
// the cost model with small bounded noise; fills follow a logistic curve
// sampled against a low-discrepancy sequence.
func historicalRows(n int) []domain.MarketSnapshot {
	rows := make([]domain.MarketSnapshot, 0, n)
	for i := 0; i < n; i++ {
		spread := 6 + float64(i%7)*2
		available := 5e6 + float64(i%5)*5e6
		vol := 30 + float64(i%4)*10
		size := 2.5e5 * float64(1+i%8)
		rel := size / available

		tier := "IG"
		if i%2 == 1 {
			tier = "HY"
		}
		side := domain.SideBuy
		if i%3 == 0 {
			side = domain.SideSell
		}
		trend := (float64(i%5) - 2) / 4
		alignment := side.Sign() * trend

		realized := trueSpreadCoef*spread/2 + trueImpactCoef*vol*math.Sqrt(rel) + 0.3*math.Sin(float64(i))
		p := 1 / (1 + math.Exp(-(3 - 12*rel - 0.8*alignment)))
		u := math.Mod(float64(i)*0.6180339887498949, 1)

		rows = append(rows, domain.MarketSnapshot{
			InstrumentID:    "XS000000" + string(rune('A'+i%26)),
			TimestampMs:     1704067200000 + int64(i)*60_000,
			SpreadBps:       spread,
			AvailableSize:   available,
			VolatilityBps:   f64(vol),
			RiskTier:        tier,
			TradeSize:       f64(size),
			TradeSide:       sidePtr(side),
			Trend:           f64(trend),
			RealizedCostBps: f64(realized),
			Filled:          boolPtr(u < p),
		})
	}
	return rows
}

// quoteOnlyRows has no historical outcomes, so training keeps the defaults.
func quoteOnlyRows(n int) []domain.MarketSnapshot {
	rows := make([]domain.MarketSnapshot, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, domain.MarketSnapshot{
			InstrumentID:  "US0000000001",
			SpreadBps:     8 + float64(i%3),
			AvailableSize: 1e7,
			VolatilityBps: f64(40 + float64(i%3)*10),
		})
	}
	return rows
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultParams(), WithEngineID("test-engine"))
	require.NoError(t, err)
	return e
}

func newTrainedEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t)
	_, err := e.Train(historicalRows(120))
	require.NoError(t, err)
	return e
}

func currentModel(t *testing.T, e *Engine) *Model {
	t.Helper()
	m, err := e.Model()
	require.NoError(t, err)
	return m
}

// benchmarkSnapshot: 10bps spread, ample liquidity.
func benchmarkSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		InstrumentID:  "US912828XG55",
		SpreadBps:     10,
		AvailableSize: 50_000_000,
		VolatilityBps: f64(40),
		RiskTier:      "IG",
	}
}

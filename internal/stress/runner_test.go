package stress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-tca/internal/decision"
	"credit-tca/internal/domain"
	"credit-tca/internal/tca"
)

func f64(v float64) *float64 { return &v }

func trainedEngine(t *testing.T) *tca.Engine {
	t.Helper()
	e, err := tca.NewEngine(tca.DefaultParams(), tca.WithEngineID("stress-test"))
	require.NoError(t, err)
	rows := make([]domain.MarketSnapshot, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, domain.MarketSnapshot{
			InstrumentID:  "XS0000000001",
			SpreadBps:     8 + float64(i%5),
			AvailableSize: 2e7,
			VolatilityBps: f64(40),
		})
	}
	_, err = e.Train(rows)
	require.NoError(t, err)
	return e
}

func snapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		InstrumentID:  "XS0000000001",
		SpreadBps:     10,
		AvailableSize: 5e7,
		VolatilityBps: f64(40),
		RiskTier:      "IG",
	}
}

func TestRun_RobustTradeIsGO(t *testing.T) {
	e := trainedEngine(t)
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideBuy, AlphaBps: 40}

	report, err := Run(e, []domain.MarketSnapshot{snapshot()}, req, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		domain.ScenarioRealistic, domain.ScenarioOptimistic, domain.ScenarioPessimistic, domain.ScenarioDegraded,
	}, report.ScenarioOrder)
	require.Len(t, report.Scenarios, 4)
	for _, sc := range report.Scenarios {
		assert.Equal(t, 1, sc.BuyCount, sc.ScenarioID)
		assert.Equal(t, 0, sc.Flips, sc.ScenarioID)
	}
	assert.Equal(t, 0.0, report.OverallFlip)

	require.NotNil(t, report.Stability)
	assert.Equal(t, decision.DecisionGO, report.Stability.Decision)
	assert.Equal(t, "stress-test", report.EngineID)
	assert.Equal(t, "BUY", report.TradeSide)
}

func TestRun_CostOrderingAcrossScenarios(t *testing.T) {
	e := trainedEngine(t)
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideBuy, AlphaBps: 15}

	report, err := Run(e, []domain.MarketSnapshot{snapshot()}, req, nil)
	require.NoError(t, err)

	opt := report.Scenario(domain.ScenarioOptimistic)
	base := report.Scenario(domain.ScenarioRealistic)
	pess := report.Scenario(domain.ScenarioPessimistic)
	degr := report.Scenario(domain.ScenarioDegraded)
	require.NotNil(t, opt)
	require.NotNil(t, degr)

	assert.Less(t, opt.CostBps.Mean, base.CostBps.Mean)
	assert.Less(t, base.CostBps.Mean, pess.CostBps.Mean)
	assert.Less(t, pess.CostBps.Mean, degr.CostBps.Mean)
	assert.Equal(t, 0.0, base.MeanCostDeltaBps)
	assert.Greater(t, degr.MeanCostDeltaBps, 0.0)

	// Realistic: cost ~10.7 bps, edge ~4.3. Pessimistic and degraded lose the edge.
	assert.Equal(t, 1, base.BuyCount)
	assert.Equal(t, 1, opt.BuyCount)
	assert.Equal(t, 1, pess.HoldCount)
	assert.Equal(t, 1, degr.HoldCount)
	assert.InDelta(t, 2.0/3.0, report.OverallFlip, 1e-12)

	require.NotNil(t, report.Stability)
	assert.Equal(t, decision.DecisionNOGO, report.Stability.Decision)
}

func TestRun_RejectedSnapshots(t *testing.T) {
	e := trainedEngine(t)
	bad := snapshot()
	bad.SpreadBps = 0
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideSell, AlphaBps: 40}

	report, err := Run(e, []domain.MarketSnapshot{snapshot(), bad}, req, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SnapshotCount)
	for _, sc := range report.Scenarios {
		assert.Equal(t, 1, sc.Evaluated, sc.ScenarioID)
		assert.Equal(t, 1, sc.Rejected, sc.ScenarioID)
		assert.Equal(t, 1, sc.ComparedToBase, sc.ScenarioID)
	}

	_, err = Run(e, []domain.MarketSnapshot{bad}, req, nil)
	assert.ErrorIs(t, err, tca.ErrInsufficientData)
}

func TestRun_CustomScenarios(t *testing.T) {
	e := trainedEngine(t)
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideBuy, AlphaBps: 40}
	wide := domain.StressScenario{ScenarioID: "wide", SpreadMultiplier: 3, LiquidityMultiplier: 1, VolatilityMultiplier: 1}

	report, err := Run(e, []domain.MarketSnapshot{snapshot()}, req, []domain.StressScenario{wide})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ScenarioRealistic, "wide"}, report.ScenarioOrder)
	assert.Nil(t, report.Stability, "stability needs pessimistic and degraded")

	_, err = Run(e, []domain.MarketSnapshot{snapshot()}, req, []domain.StressScenario{wide, wide})
	assert.ErrorIs(t, err, tca.ErrValidation)

	broken := wide
	broken.SpreadMultiplier = 0
	_, err = Run(e, []domain.MarketSnapshot{snapshot()}, req, []domain.StressScenario{broken})
	assert.ErrorIs(t, err, tca.ErrValidation)
}

func TestRun_Errors(t *testing.T) {
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideBuy, AlphaBps: 40}

	untrained, err := tca.NewEngine(tca.DefaultParams())
	require.NoError(t, err)
	_, err = Run(untrained, []domain.MarketSnapshot{snapshot()}, req, nil)
	assert.ErrorIs(t, err, tca.ErrNotTrained)

	e := trainedEngine(t)
	_, err = Run(e, nil, req, nil)
	assert.ErrorIs(t, err, tca.ErrInsufficientData)

	_, err = Run(e, []domain.MarketSnapshot{snapshot()}, domain.TradeRequest{Size: -1, Side: domain.SideBuy}, nil)
	assert.ErrorIs(t, err, tca.ErrValidation)

	_, err = Run(nil, []domain.MarketSnapshot{snapshot()}, req, nil)
	assert.ErrorIs(t, err, tca.ErrValidation)
}

func TestRun_LeavesEngineUntouched(t *testing.T) {
	e := trainedEngine(t)
	before := e.Calibration()
	snaps := []domain.MarketSnapshot{snapshot()}

	_, err := Run(e, snaps, domain.TradeRequest{Size: 1e6, Side: domain.SideBuy, AlphaBps: 15}, nil)
	require.NoError(t, err)

	assert.Equal(t, before, e.Calibration())
	assert.Equal(t, 10.0, snaps[0].SpreadBps)
	assert.Equal(t, 40.0, *snaps[0].VolatilityBps)
}

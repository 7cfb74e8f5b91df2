package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-tca/internal/calibration"
	"credit-tca/internal/config"
	"credit-tca/internal/domain"
)

func TestRun_SampleData(t *testing.T) {
	cfg := config.Default()
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideBuy, Trend: -0.5, AlphaBps: 15}

	out, err := run(context.Background(), zerolog.Nop(), &cfg, runInput{
		dataPath: filepath.Join("..", "..", "data", "rfq_data.csv"),
		request:  req,
	})
	require.NoError(t, err)

	require.NotNil(t, out.Model)
	assert.Greater(t, out.Model.TrainedRows, 40)
	require.NotNil(t, out.Evaluation)
	assert.InDelta(t, out.Evaluation.AlphaBps-out.Evaluation.CostBps, out.Evaluation.NetEdgeBps, 1e-9)

	// built-in batch: mean error 14 bps, all liquidity impact
	require.NotNil(t, out.Calibration)
	assert.Equal(t, calibration.ActionAutoCorrected, out.Calibration.Action)
	assert.InDelta(t, 1.14, out.Calibration.MultiplierAfter, 1e-12)

	require.NotNil(t, out.Stress)
	assert.Len(t, out.Stress.Scenarios, 4)
	assert.Equal(t, 1, out.Stress.CalibrationGeneration)

	var buf bytes.Buffer
	printHuman(&buf, req, out)
	assert.Contains(t, buf.String(), "Decision: ")
	assert.Contains(t, buf.String(), "AUTO_CORRECTED")
}

func TestRun_Errors(t *testing.T) {
	cfg := config.Default()
	req := domain.TradeRequest{Size: 1e6, Side: domain.SideBuy}

	_, err := run(context.Background(), zerolog.Nop(), &cfg, runInput{dataPath: "does-not-exist.csv", request: req})
	assert.Error(t, err)

	_, err = run(context.Background(), zerolog.Nop(), &cfg, runInput{
		dataPath:      filepath.Join("..", "..", "data", "rfq_data.csv"),
		snapshotIndex: 10_000,
		request:       req,
	})
	assert.Error(t, err)
}

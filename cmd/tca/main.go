// Package main runs the pre-trade TCA workflow offline:
// load RFQ history → train → evaluate one trade → calibrate on a post-trade batch → stress test.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"credit-tca/internal/calibration"
	"credit-tca/internal/config"
	"credit-tca/internal/domain"
	"credit-tca/internal/logger"
	"credit-tca/internal/marketdata"
	"credit-tca/internal/storage/memory"
	"credit-tca/internal/stress"
	"credit-tca/internal/tca"
)

// runOutput is the -json document.
type runOutput struct {
	Model       *tca.Model            `json:"model"`
	Evaluation  *tca.EvaluationResult `json:"evaluation"`
	Calibration *calibration.Report   `json:"calibration"`
	Stress      *stress.Report        `json:"stress"`
}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file (engine and calibration parameters)")
	dataPath := flag.String("data", "data/rfq_data.csv", "RFQ history CSV")
	postTradePath := flag.String("post-trade", "", "Post-trade CSV (default: built-in sample batch)")
	snapshotIndex := flag.Int("snapshot", 0, "Index of the loaded row used as the current market snapshot")
	size := flag.Float64("size", 1_000_000, "Trade notional")
	side := flag.String("side", "BUY", "Trade side: BUY or SELL")
	trend := flag.Float64("trend", -0.5, "Market trend in [-1, 1]")
	alpha := flag.Float64("alpha", 15, "Expected alpha in bps")
	skipStress := flag.Bool("skip-stress", false, "Skip the stress test")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	logLevel := flag.String("log-level", "", "Log level override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log := logger.New(cfg.Log)

	tradeSide, err := domain.ParseSide(*side)
	if err != nil {
		log.Fatal().Err(err).Str("side", *side).Msg("invalid side")
	}
	req := domain.TradeRequest{Size: *size, Side: tradeSide, Trend: *trend, AlphaBps: *alpha}
	if err := req.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid trade request")
	}

	out, err := run(context.Background(), log, cfg, runInput{
		dataPath:      *dataPath,
		postTradePath: *postTradePath,
		snapshotIndex: *snapshotIndex,
		request:       req,
		skipStress:    *skipStress,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatal().Err(err).Msg("encode output")
		}
		return
	}
	printHuman(os.Stdout, req, out)
}

type runInput struct {
	dataPath      string
	postTradePath string
	snapshotIndex int
	request       domain.TradeRequest
	skipStress    bool
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config, in runInput) (*runOutput, error) {
	snapshots, err := loadSnapshots(log, in.dataPath)
	if err != nil {
		return nil, err
	}
	if in.snapshotIndex < 0 || in.snapshotIndex >= len(snapshots) {
		return nil, fmt.Errorf("snapshot index %d out of range [0, %d)", in.snapshotIndex, len(snapshots))
	}

	engineOpts := []tca.Option{tca.WithLogger(log)}
	if cfg.Server.EngineID != "" {
		engineOpts = append(engineOpts, tca.WithEngineID(cfg.Server.EngineID))
	}
	engine, err := tca.NewEngine(cfg.Engine, engineOpts...)
	if err != nil {
		return nil, err
	}
	out := &runOutput{}
	if out.Model, err = engine.Train(snapshots); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	if out.Evaluation, err = engine.EvaluateTradeOpportunity(snapshots[in.snapshotIndex], in.request); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	records, err := loadPostTrades(log, in.postTradePath)
	if err != nil {
		return nil, err
	}
	calibrator, err := calibration.NewEngine(engine, cfg.Calibration,
		calibration.WithLogger(log),
		calibration.WithLogStore(memory.NewCalibrationLogStore()),
	)
	if err != nil {
		return nil, err
	}
	if out.Calibration, err = calibrator.AnalyzeBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}

	if !in.skipStress {
		if out.Stress, err = stress.Run(engine, snapshots, in.request, nil); err != nil {
			return nil, fmt.Errorf("stress: %w", err)
		}
	}
	return out, nil
}

func loadSnapshots(log zerolog.Logger, path string) ([]domain.MarketSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market data: %w", err)
	}
	defer f.Close()

	snapshots, stats, err := marketdata.ReadSnapshots(f, marketdata.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log.Info().
		Str("file", path).
		Int("rows", stats.Rows).
		Int("kept", stats.Kept).
		Int("dropped", stats.Dropped).
		Msg("market data loaded")
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%s: %w", path, tca.ErrInsufficientData)
	}
	return snapshots, nil
}

// sampleBatch: realized cost well above prediction with strong reversion,
// i.e. temporary liquidity impact.
func sampleBatch() []domain.PostTradeRecord {
	predicted := []float64{10, 12, 11}
	realized := []float64{25, 28, 22}
	reversion := []float64{20, 25, 18}
	out := make([]domain.PostTradeRecord, len(predicted))
	for i := range out {
		out[i] = domain.PostTradeRecord{
			TimestampMs:      int64(i),
			PredictedCostBps: predicted[i],
			RealizedCostBps:  realized[i],
			ReversionBps:     reversion[i],
		}
	}
	return out
}

func loadPostTrades(log zerolog.Logger, path string) ([]domain.PostTradeRecord, error) {
	if path == "" {
		return sampleBatch(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open post-trade data: %w", err)
	}
	defer f.Close()

	records, stats, err := marketdata.ReadPostTrades(f, marketdata.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, errors.New("no usable post-trade records")
	}
	log.Info().Str("file", path).Int("kept", stats.Kept).Int("dropped", stats.Dropped).Msg("post-trade data loaded")
	return records, nil
}

func printHuman(w io.Writer, req domain.TradeRequest, out *runOutput) {
	m := out.Model
	fmt.Fprintln(w, "=== Training ===")
	fmt.Fprintf(w, "Rows used: %d (skipped %d)\n", m.TrainedRows, m.SkippedRows)
	fmt.Fprintf(w, "Cost model: spread_coef=%.3f impact_coef=%.3f trend_sensitivity=%.3f fitted=%v (%d outcome rows)\n",
		m.Cost.SpreadCoef, m.Cost.ImpactCoef, m.Cost.TrendSensitivity, m.Cost.Fitted, m.Cost.OutcomeRows)
	fmt.Fprintf(w, "Fill model: intercept=%.3f size_coef=%.3f alignment_coef=%.3f fitted=%v (%d outcome rows)\n",
		m.Fill.Intercept, m.Fill.SizeCoef, m.Fill.AlignmentCoef, m.Fill.Fitted, m.Fill.OutcomeRows)

	e := out.Evaluation
	fmt.Fprintln(w, "\n=== Trade Evaluation ===")
	fmt.Fprintf(w, "Request: %s %.0f, trend %.2f, alpha %.2f bps\n", req.Side, req.Size, req.Trend, req.AlphaBps)
	fmt.Fprintf(w, "Decision: %s\n", e.Decision)
	fmt.Fprintf(w, "Net Edge: %.2f bps\n", e.NetEdgeBps)
	fmt.Fprintf(w, "  |-- Theoretical Alpha: %.2f bps\n", e.AlphaBps)
	fmt.Fprintf(w, "  |-- Estimated Cost:    %.2f bps\n", e.CostBps)
	fmt.Fprintf(w, "  |-- Prob of Fill:      %.1f%%\n", e.ProbFill*100)

	c := out.Calibration
	fmt.Fprintln(w, "\n=== Post-Trade Calibration ===")
	fmt.Fprintf(w, "Records: %d, mean cost error %.2f bps, liquidity impact %d/%d\n",
		c.RecordCount, c.MeanCostErrorBps, c.LiquidityImpactCount, c.RecordCount)
	fmt.Fprintf(w, "Action: %s (multiplier %.4f -> %.4f, generation %d -> %d)\n",
		c.Action, c.MultiplierBefore, c.MultiplierAfter, c.GenerationBefore, c.GenerationAfter)
	for _, warn := range c.Warnings {
		fmt.Fprintf(w, "  WARNING %s: %s\n", warn.Kind, warn.Message)
	}

	if out.Stress == nil {
		return
	}
	s := out.Stress
	fmt.Fprintln(w, "\n=== Stress Test ===")
	fmt.Fprintf(w, "%-12s %8s %8s %8s %12s %12s %8s\n", "scenario", "buy", "sell", "hold", "mean_cost", "mean_edge", "flips")
	fmt.Fprintln(w, strings.Repeat("-", 74))
	for _, sc := range s.Scenarios {
		fmt.Fprintf(w, "%-12s %8d %8d %8d %12.2f %12.2f %8d\n",
			sc.ScenarioID, sc.BuyCount, sc.SellCount, sc.HoldCount, sc.CostBps.Mean, sc.MeanNetEdgeBps, sc.Flips)
	}
	if s.Stability != nil {
		fmt.Fprintf(w, "Stability: %s (overall flip rate %.1f%%)\n", s.Stability.Decision, s.OverallFlip*100)
	}
}

// Package main runs the TCA HTTP service: it trains the evaluation engine from
// a CSV file or the snapshot store, then serves evaluation, calibration and
// stress requests until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"credit-tca/internal/api"
	"credit-tca/internal/calibration"
	"credit-tca/internal/config"
	"credit-tca/internal/domain"
	"credit-tca/internal/logger"
	"credit-tca/internal/marketdata"
	"credit-tca/internal/observability"
	"credit-tca/internal/storage"
	"credit-tca/internal/storage/backend"
	"credit-tca/internal/tca"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	trainWindow := flag.Duration("train-window", 90*24*time.Hour, "Snapshot history used for startup training from the store (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	logger.SetGlobalLogger(log)

	if err := run(cfg, *trainWindow, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, trainWindow time.Duration, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.Server.MetricsNamespace, prometheus.DefaultRegisterer)

	stores, err := backend.Open(ctx, cfg, metrics, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	engineOpts := []tca.Option{tca.WithLogger(log), tca.WithMetrics(metrics)}
	if cfg.Server.EngineID != "" {
		engineOpts = append(engineOpts, tca.WithEngineID(cfg.Server.EngineID))
	}
	engine, err := tca.NewEngine(cfg.Engine, engineOpts...)
	if err != nil {
		return err
	}
	calibrator, err := calibration.NewEngine(engine, cfg.Calibration,
		calibration.WithLogger(log),
		calibration.WithMetrics(metrics),
		calibration.WithLogStore(stores.CalibrationLog),
	)
	if err != nil {
		return err
	}

	if err := initialTraining(ctx, log, engine, cfg.Server.TrainingFile, stores.Snapshots, trainWindow); err != nil {
		// The service still starts; POST /v1/train can train it later.
		log.Warn().Err(err).Msg("engine not trained at startup")
	}

	srv, err := api.New(api.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Engine:       engine,
		Calibrator:   calibrator,
		Snapshots:    stores.Snapshots,
		PostTrades:   stores.PostTrades,
		Metrics:      metrics,
		Gatherer:     prometheus.DefaultGatherer,
		Log:          log,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// initialTraining trains from file when one is configured, otherwise from the
// snapshot store over the last window.
func initialTraining(ctx context.Context, log zerolog.Logger, engine *tca.Engine, file string, store storage.SnapshotStore, window time.Duration) error {
	var snapshots []domain.MarketSnapshot
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		if snapshots, _, err = marketdata.ReadSnapshots(f, marketdata.WithLogger(log)); err != nil {
			return err
		}
	} else {
		end := time.Now().UnixMilli()
		var start int64
		if window > 0 {
			start = end - window.Milliseconds()
		}
		stored, err := store.GetByTimeRange(ctx, start, end)
		if err != nil {
			return fmt.Errorf("load snapshots: %w", err)
		}
		snapshots = make([]domain.MarketSnapshot, len(stored))
		for i, s := range stored {
			snapshots[i] = *s
		}
	}

	model, err := engine.Train(snapshots)
	if err != nil {
		return err
	}
	log.Info().
		Str("engine_id", model.EngineID).
		Int("rows", model.TrainedRows).
		Bool("cost_fitted", model.Cost.Fitted).
		Bool("fill_fitted", model.Fill.Fitted).
		Msg("engine trained at startup")
	return nil
}

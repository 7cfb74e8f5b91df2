// Package main loads RFQ history and post-trade CSV files into the configured stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"credit-tca/internal/config"
	"credit-tca/internal/domain"
	"credit-tca/internal/logger"
	"credit-tca/internal/marketdata"
	"credit-tca/internal/storage"
	"credit-tca/internal/storage/backend"
)

// ingestStats counts one file's outcome.
type ingestStats struct {
	Inserted   int
	Duplicates int
}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	snapshotsPath := flag.String("snapshots", "", "RFQ / market snapshot CSV to load into ClickHouse")
	postTradesPath := flag.String("post-trades", "", "Post-trade CSV to load into PostgreSQL")
	batchSize := flag.Int("batch-size", 1000, "Rows per insert batch")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log).With().Str("component", "ingest").Logger()

	if *snapshotsPath == "" && *postTradesPath == "" {
		log.Fatal().Msg("--snapshots or --post-trades is required")
	}
	if *batchSize <= 0 {
		log.Fatal().Int("batch_size", *batchSize).Msg("--batch-size must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := backend.Open(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	persistSnapshots, persistPostTrades := stores.Persistent()
	if *snapshotsPath != "" && !persistSnapshots {
		log.Warn().Msg("no ClickHouse DSN configured; snapshots will not outlive this process")
	}
	if *postTradesPath != "" && !persistPostTrades {
		log.Warn().Msg("no PostgreSQL DSN configured; post-trade records will not outlive this process")
	}

	failed := false
	if *snapshotsPath != "" {
		st, err := ingestSnapshots(ctx, log, stores.Snapshots, *snapshotsPath, *batchSize)
		if err != nil {
			log.Error().Err(err).Str("file", *snapshotsPath).Msg("snapshot ingestion failed")
			failed = true
		} else {
			log.Info().Str("file", *snapshotsPath).Int("inserted", st.Inserted).Int("duplicates", st.Duplicates).Msg("snapshots ingested")
		}
	}
	if *postTradesPath != "" {
		st, err := ingestPostTrades(ctx, log, stores.PostTrades, *postTradesPath, *batchSize)
		if err != nil {
			log.Error().Err(err).Str("file", *postTradesPath).Msg("post-trade ingestion failed")
			failed = true
		} else {
			log.Info().Str("file", *postTradesPath).Int("inserted", st.Inserted).Int("duplicates", st.Duplicates).Msg("post-trade records ingested")
		}
	}
	if failed {
		stores.Close()
		os.Exit(1)
	}
}

func ingestSnapshots(ctx context.Context, log zerolog.Logger, store storage.SnapshotStore, path string, batchSize int) (ingestStats, error) {
	var st ingestStats
	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	snapshots, read, err := marketdata.ReadSnapshots(f, marketdata.WithLogger(log))
	if err != nil {
		return st, err
	}
	log.Info().Int("rows", read.Rows).Int("kept", read.Kept).Int("dropped", read.Dropped).Msg("snapshot file parsed")

	ptrs := make([]*domain.MarketSnapshot, len(snapshots))
	for i := range snapshots {
		ptrs[i] = &snapshots[i]
	}
	err = inBatches(ctx, ptrs, batchSize, &st, store.InsertBulk)
	return st, err
}

func ingestPostTrades(ctx context.Context, log zerolog.Logger, store storage.PostTradeStore, path string, batchSize int) (ingestStats, error) {
	var st ingestStats
	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	records, read, err := marketdata.ReadPostTrades(f, marketdata.WithLogger(log))
	if err != nil {
		return st, err
	}
	log.Info().Int("rows", read.Rows).Int("kept", read.Kept).Int("dropped", read.Dropped).Msg("post-trade file parsed")

	ptrs := make([]*domain.PostTradeRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	err = inBatches(ctx, ptrs, batchSize, &st, store.InsertBulk)
	return st, err
}

// inBatches inserts items batch by batch. A batch rejected for a duplicate
// key is retried row by row so that re-running an ingest is idempotent.
func inBatches[T any](ctx context.Context, items []T, size int, st *ingestStats, insert func(context.Context, []T) error) error {
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(items))
		batch := items[start:end]

		err := insert(ctx, batch)
		if err == nil {
			st.Inserted += len(batch)
			continue
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		for _, item := range batch {
			err := insert(ctx, []T{item})
			switch {
			case err == nil:
				st.Inserted++
			case errors.Is(err, storage.ErrDuplicateKey):
				st.Duplicates++
			default:
				return err
			}
		}
	}
	return nil
}

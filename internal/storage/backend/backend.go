// Package backend selects and opens the store implementations named by the
// configuration: ClickHouse for market snapshots, PostgreSQL for post-trade
// records and the calibration log, in-memory stores when a DSN is empty.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"credit-tca/internal/config"
	"credit-tca/internal/observability"
	"credit-tca/internal/storage"
	chstore "credit-tca/internal/storage/clickhouse"
	"credit-tca/internal/storage/memory"
	"credit-tca/internal/storage/migrations"
	pgstore "credit-tca/internal/storage/postgres"
)

// Stores holds the opened stores.
type Stores struct {
	Snapshots      storage.SnapshotStore
	PostTrades     storage.PostTradeStore
	CalibrationLog storage.CalibrationLogStore

	closers []func()
}

// Close releases every connection opened by Open.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Persistent reports whether snapshots and post-trade records go to real databases.
func (s *Stores) Persistent() (snapshots, postTrades bool) {
	_, memSnap := s.Snapshots.(*memory.SnapshotStore)
	_, memPost := s.PostTrades.(*memory.PostTradeStore)
	return !memSnap, !memPost
}

// Open connects to the configured databases, running migrations when enabled.
// m may be nil.
func Open(ctx context.Context, cfg *config.Config, m *observability.Metrics, log zerolog.Logger) (*Stores, error) {
	s := &Stores{
		Snapshots:      memory.NewSnapshotStore(),
		PostTrades:     memory.NewPostTradeStore(),
		CalibrationLog: memory.NewCalibrationLogStore(),
	}

	if cfg.ClickHouse.DSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.ClickHouse.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN, log)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		}
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		conn.WithMetrics(m)
		s.closers = append(s.closers, func() {
			if err := conn.Close(); err != nil {
				log.Warn().Err(err).Msg("close clickhouse connection")
			}
		})
		s.Snapshots = chstore.NewSnapshotStore(conn)
		log.Info().Msg("using ClickHouse snapshot store")
	} else {
		log.Info().Msg("using in-memory snapshot store")
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pool.WithMetrics(m)
		s.closers = append(s.closers, pool.Close)
		if cfg.Postgres.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
				s.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		s.PostTrades = pgstore.NewPostTradeStore(pool)
		s.CalibrationLog = pgstore.NewCalibrationLogStore(pool)
		log.Info().Msg("using PostgreSQL post-trade and calibration log stores")
	} else {
		log.Info().Msg("using in-memory post-trade and calibration log stores")
	}

	return s, nil
}

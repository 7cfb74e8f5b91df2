package backend

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-tca/internal/config"
	"credit-tca/internal/storage/memory"
)

func TestOpen_InMemory(t *testing.T) {
	cfg := config.Default()

	s, err := Open(context.Background(), &cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.SnapshotStore{}, s.Snapshots)
	assert.IsType(t, &memory.PostTradeStore{}, s.PostTrades)
	assert.IsType(t, &memory.CalibrationLogStore{}, s.CalibrationLog)

	snap, post := s.Persistent()
	assert.False(t, snap)
	assert.False(t, post)
}

func TestOpen_BadClickHouseDSN(t *testing.T) {
	cfg := config.Default()
	cfg.ClickHouse.DSN = "clickhouse://"
	cfg.ClickHouse.Migrate = false

	_, err := Open(context.Background(), &cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-tca/internal/storage/memory"
)

func TestIngestSnapshots_Idempotent(t *testing.T) {
	store := memory.NewSnapshotStore()
	path := filepath.Join("..", "..", "data", "rfq_data.csv")

	first, err := ingestSnapshots(context.Background(), zerolog.Nop(), store, path, 7)
	require.NoError(t, err)
	assert.Greater(t, first.Inserted, 40)
	assert.Zero(t, first.Duplicates)

	second, err := ingestSnapshots(context.Background(), zerolog.Nop(), store, path, 7)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, first.Inserted, second.Duplicates)
}

func TestIngestSnapshots_NoInstrumentColumn(t *testing.T) {
	store := memory.NewSnapshotStore()
	path := filepath.Join(t.TempDir(), "quotes.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"date,spread_bps,liquidity\n"+
			"2024-03-01,10,5000000\n"+
			"2024-03-04,12,4000000\n"), 0o644))

	st, err := ingestSnapshots(context.Background(), zerolog.Nop(), store, path, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Inserted)
	assert.Zero(t, st.Duplicates)

	got, err := store.GetByTimeRange(context.Background(), 0, 1<<62)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIngestPostTrades(t *testing.T) {
	store := memory.NewPostTradeStore()
	path := filepath.Join(t.TempDir(), "post.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"isin,date,predicted,realized,reversion\n"+
			"XS1,2024-03-01,10,25,20\n"+
			"XS1,2024-03-04,12,28,25\n"+
			"XS1,2024-03-05,11,,18\n"), 0o644))

	st, err := ingestPostTrades(context.Background(), zerolog.Nop(), store, path, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Inserted)

	st, err = ingestPostTrades(context.Background(), zerolog.Nop(), store, path, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Duplicates)
}

func TestIngest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var st ingestStats
	err := inBatches(ctx, []int{1, 2}, 1, &st, func(context.Context, []int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

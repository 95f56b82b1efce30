//go:build integration
// +build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_InsertOrIgnoreAndRollback(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
	url := os.Getenv("STORAGE_POSTGRES_URL")
	if url == "" {
		t.Skip("STORAGE_POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, url, 2)
	require.NoError(t, err)
	defer store.Close()

	// unique symbol keeps reruns independent
	symbol := "IT-" + uuid.NewString()[:8]
	rec := tick.Record{TimestampMs: time.Now().UnixMilli(), Symbol: symbol, TradeID: 1, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}

	require.NoError(t, store.Begin(ctx))
	inserted, err := store.InsertRaw(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	dup, err := store.InsertRaw(ctx, rec)
	require.NoError(t, err)
	assert.False(t, dup)
	require.NoError(t, store.InsertMetrics(ctx, tick.Metrics{TimestampMs: rec.TimestampMs, TradeID: 1, Symbol: symbol}))
	require.NoError(t, store.Commit(ctx))

	rolled := rec
	rolled.TradeID = 2
	require.NoError(t, store.Begin(ctx))
	_, err = store.InsertRaw(ctx, rolled)
	require.NoError(t, err)
	require.NoError(t, store.Rollback(ctx))

	n, err := store.CountRaw(ctx, symbol)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

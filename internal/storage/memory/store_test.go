package memory

import (
	"context"
	"testing"

	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CommitMakesRowsVisible(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Begin(ctx))
	inserted, err := s.InsertRaw(ctx, tick.Record{Symbol: "BTCUSDT", TradeID: 1, TimestampMs: 10})
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, s.InsertMetrics(ctx, tick.Metrics{Symbol: "BTCUSDT", TradeID: 1, TimestampMs: 10}))

	assert.Empty(t, s.Raw(), "uncommitted rows must not be visible")

	require.NoError(t, s.Commit(ctx))
	assert.Len(t, s.Raw(), 1)
	assert.Len(t, s.Metrics(), 1)
	assert.Equal(t, 1, s.Commits())
}

func TestStore_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Begin(ctx))
	_, err := s.InsertRaw(ctx, tick.Record{Symbol: "BTCUSDT", TradeID: 1})
	require.NoError(t, err)
	require.NoError(t, s.Rollback(ctx))

	assert.Empty(t, s.Raw())
	assert.Equal(t, 1, s.Rollbacks())

	// the key is free again after rollback
	require.NoError(t, s.Begin(ctx))
	inserted, err := s.InsertRaw(ctx, tick.Record{Symbol: "BTCUSDT", TradeID: 1})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestStore_DuplicatesIgnored(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := tick.Record{Symbol: "BTCUSDT", TradeID: 5, TimestampMs: 99}

	require.NoError(t, s.Begin(ctx))
	first, err := s.InsertRaw(ctx, rec)
	require.NoError(t, err)
	again, err := s.InsertRaw(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, s.Begin(ctx))
	later, err := s.InsertRaw(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	assert.True(t, first)
	assert.False(t, again)
	assert.False(t, later)
	assert.Len(t, s.Raw(), 1)
}

func TestStore_TransactionDiscipline(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.InsertRaw(ctx, tick.Record{})
	assert.ErrorIs(t, err, storage.ErrNoTransaction)
	assert.ErrorIs(t, s.InsertMetrics(ctx, tick.Metrics{}), storage.ErrNoTransaction)
	assert.ErrorIs(t, s.Commit(ctx), storage.ErrNoTransaction)
	assert.ErrorIs(t, s.Rollback(ctx), storage.ErrNoTransaction)

	require.NoError(t, s.Begin(ctx))
	assert.ErrorIs(t, s.Begin(ctx), storage.ErrTransactionInProgress)
}

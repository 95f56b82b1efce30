// Package postgres implements the storage gateway on a PostgreSQL pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
)

var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS raw_ohlcv_data (
	open_time_ms BIGINT NOT NULL,
	trade_id BIGINT NOT NULL,
	symbol TEXT NOT NULL,
	open_price DOUBLE PRECISION NOT NULL,
	high_price DOUBLE PRECISION NOT NULL,
	low_price DOUBLE PRECISION NOT NULL,
	close_price DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	UNIQUE (symbol, trade_id, open_time_ms)
);
CREATE TABLE IF NOT EXISTS aggregated_metrics (
	open_time_ms BIGINT NOT NULL,
	trade_id BIGINT NOT NULL,
	symbol TEXT NOT NULL,
	vwap DOUBLE PRECISION NOT NULL,
	simple_average DOUBLE PRECISION NOT NULL,
	ema_20 DOUBLE PRECISION NOT NULL,
	ema_50 DOUBLE PRECISION NOT NULL,
	UNIQUE (symbol, trade_id, open_time_ms)
);
CREATE INDEX IF NOT EXISTS idx_metrics_symbol_time ON aggregated_metrics(symbol, open_time_ms);
`

// Store writes raw ticks and derived metrics to PostgreSQL
type Store struct {
	pool *pgxpool.Pool

	mu sync.Mutex
	tx pgx.Tx
}

// Open connects to url, verifies the connection and applies the schema
func Open(ctx context.Context, url string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgresql config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgresql pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgresql: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return storage.ErrTransactionInProgress
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *Store) InsertRaw(ctx context.Context, rec tick.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return false, storage.ErrNoTransaction
	}
	tag, err := s.tx.Exec(ctx,
		`INSERT INTO raw_ohlcv_data
			(open_time_ms, trade_id, symbol, open_price, high_price, low_price, close_price, volume)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT DO NOTHING`,
		rec.TimestampMs, rec.TradeID, rec.Symbol, rec.Open, rec.High, rec.Low, rec.Close, rec.Volume,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert raw record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) InsertMetrics(ctx context.Context, row tick.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	_, err := s.tx.Exec(ctx,
		`INSERT INTO aggregated_metrics
			(open_time_ms, trade_id, symbol, vwap, simple_average, ema_20, ema_50)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING`,
		row.TimestampMs, row.TradeID, row.Symbol, row.VWAPProxy, row.SimpleAvg, row.EMAFast, row.EMASlow,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metrics row: %w", err)
	}
	return nil
}

func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CountRaw returns the number of committed raw rows of symbol
func (s *Store) CountRaw(ctx context.Context, symbol string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_ohlcv_data WHERE symbol = $1`, symbol).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw rows: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.tx != nil {
		_ = s.tx.Rollback(context.Background())
		s.tx = nil
	}
	s.mu.Unlock()

	s.pool.Close()
	return nil
}

// Package sqlite implements the storage gateway on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

// Store writes raw ticks and derived metrics to a SQLite database
type Store struct {
	db *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

// Open creates or opens the database at path and applies the schema
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; concurrent connections only produce SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS raw_ohlcv_data (
			open_time_ms INTEGER NOT NULL,
			trade_id INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			open_price REAL NOT NULL,
			high_price REAL NOT NULL,
			low_price REAL NOT NULL,
			close_price REAL NOT NULL,
			volume REAL NOT NULL,
			UNIQUE (symbol, trade_id, open_time_ms)
		)`,
		`CREATE TABLE IF NOT EXISTS aggregated_metrics (
			open_time_ms INTEGER NOT NULL,
			trade_id INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			vwap REAL NOT NULL,
			simple_average REAL NOT NULL,
			ema_20 REAL NOT NULL,
			ema_50 REAL NOT NULL,
			UNIQUE (symbol, trade_id, open_time_ms)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_symbol_time
			ON aggregated_metrics(symbol, open_time_ms)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return storage.ErrTransactionInProgress
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// InsertRaw reports false when a row with the same key already exists
func (s *Store) InsertRaw(ctx context.Context, rec tick.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return false, storage.ErrNoTransaction
	}
	res, err := s.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO raw_ohlcv_data
			(open_time_ms, trade_id, symbol, open_price, high_price, low_price, close_price, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TimestampMs, rec.TradeID, rec.Symbol, rec.Open, rec.High, rec.Low, rec.Close, rec.Volume,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert raw record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) InsertMetrics(ctx context.Context, row tick.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	_, err := s.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO aggregated_metrics
			(open_time_ms, trade_id, symbol, vwap, simple_average, ema_20, ema_50)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.TimestampMs, row.TradeID, row.Symbol, row.VWAPProxy, row.SimpleAvg, row.EMAFast, row.EMASlow,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metrics row: %w", err)
	}
	return nil
}

// Commit ends the transaction whether or not the commit succeeds
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
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
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListMetrics returns the committed metrics of symbol in time order
func (s *Store) ListMetrics(ctx context.Context, symbol string) ([]tick.Metrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT open_time_ms, trade_id, symbol, vwap, simple_average, ema_20, ema_50
		 FROM aggregated_metrics
		 WHERE symbol = ?
		 ORDER BY open_time_ms ASC, trade_id ASC`,
		symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []tick.Metrics
	for rows.Next() {
		var m tick.Metrics
		if err := rows.Scan(&m.TimestampMs, &m.TradeID, &m.Symbol, &m.VWAPProxy, &m.SimpleAvg, &m.EMAFast, &m.EMASlow); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountRaw returns the number of committed raw rows of symbol; empty symbol counts all
func (s *Store) CountRaw(ctx context.Context, symbol string) (int64, error) {
	var n int64
	var err error
	if symbol == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_ohlcv_data`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_ohlcv_data WHERE symbol = ?`, symbol).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count raw rows: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

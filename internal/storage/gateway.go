// Package storage defines the transactional contract the batch processor
// writes through. Drivers live in the sqlite, postgres and memory subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/luksha14/CryptoDataEngine/internal/tick"
)

var (
	// ErrNoTransaction is returned by operations that need an open transaction
	ErrNoTransaction = errors.New("storage: no transaction in progress")
	// ErrTransactionInProgress is returned by Begin when a transaction is already open
	ErrTransactionInProgress = errors.New("storage: transaction already in progress")
)

// Gateway executes batch writes inside a single transaction.
// At most one transaction is open at a time.
type Gateway interface {
	Begin(ctx context.Context) error
	// InsertRaw stores rec and reports whether it was newly inserted.
	// A record whose (symbol, trade_id, timestamp_ms) already exists is ignored.
	InsertRaw(ctx context.Context, rec tick.Record) (bool, error)
	InsertMetrics(ctx context.Context, row tick.Metrics) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is a Gateway that owns its underlying connection
type Store interface {
	Gateway
	Ping(ctx context.Context) error
	Close() error
}

// Package memory is a transactional in-memory storage gateway.
package memory

import (
	"context"
	"sync"

	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
)

var _ storage.Store = (*Store)(nil)

type txState struct {
	raw     []tick.Record
	keys    map[tick.Key]struct{}
	metrics []tick.Metrics
}

// Store keeps committed rows in memory. Uncommitted rows are invisible to the
// read accessors until Commit.
type Store struct {
	mu        sync.Mutex
	raw       []tick.Record
	keys      map[tick.Key]struct{}
	metrics   []tick.Metrics
	tx        *txState
	commits   int
	rollbacks int
}

// New creates an empty store
func New() *Store {
	return &Store{keys: make(map[tick.Key]struct{})}
}

func (s *Store) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return storage.ErrTransactionInProgress
	}
	s.tx = &txState{keys: make(map[tick.Key]struct{})}
	return nil
}

func (s *Store) InsertRaw(ctx context.Context, rec tick.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return false, storage.ErrNoTransaction
	}
	key := rec.Key()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	if _, ok := s.tx.keys[key]; ok {
		return false, nil
	}
	s.tx.keys[key] = struct{}{}
	s.tx.raw = append(s.tx.raw, rec)
	return true, nil
}

func (s *Store) InsertMetrics(ctx context.Context, row tick.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	s.tx.metrics = append(s.tx.metrics, row)
	return nil
}

func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	for k := range s.tx.keys {
		s.keys[k] = struct{}{}
	}
	s.raw = append(s.raw, s.tx.raw...)
	s.metrics = append(s.metrics, s.tx.metrics...)
	s.tx = nil
	s.commits++
	return nil
}

func (s *Store) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return storage.ErrNoTransaction
	}
	s.tx = nil
	s.rollbacks++
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Raw returns committed raw records in insertion order
func (s *Store) Raw() []tick.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tick.Record(nil), s.raw...)
}

// Metrics returns committed metrics rows in insertion order
func (s *Store) Metrics() []tick.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tick.Metrics(nil), s.metrics...)
}

// Commits returns the number of committed transactions
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Rollbacks returns the number of rolled back transactions
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

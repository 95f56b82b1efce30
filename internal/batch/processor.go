// Package batch accumulates queued records and writes them to storage in
// size- or time-bounded transactions.
package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/luksha14/CryptoDataEngine/internal/indicator"
	"github.com/luksha14/CryptoDataEngine/internal/observability"
	"github.com/luksha14/CryptoDataEngine/internal/queue"
	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
)

// Trigger names what caused a flush
type Trigger string

const (
	TriggerSize     Trigger = "size"
	TriggerTimeout  Trigger = "timeout"
	TriggerShutdown Trigger = "shutdown"
)

// State of the processor loop
type State int32

const (
	StateIdle State = iota
	StateWaiting
	StateFlushing
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateFlushing:
		return "flushing"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the flush policy
type Config struct {
	// Size flushes as soon as the buffer holds this many records
	Size int
	// FlushInterval flushes a non-empty buffer after this long without new records
	FlushInterval time.Duration
	// PollInterval is the idle sleep between empty polls
	PollInterval time.Duration
}

// DefaultConfig returns the default flush policy
func DefaultConfig() Config {
	return Config{
		Size:          100,
		FlushInterval: 500 * time.Millisecond,
		PollInterval:  100 * time.Millisecond,
	}
}

// Result describes a committed batch
type Result struct {
	BatchID    string
	Size       int
	Inserted   int
	Duplicates int
	Rows       []tick.Metrics
}

// Publisher receives the metrics rows of every committed batch
type Publisher interface {
	PublishMetrics(ctx context.Context, rows []tick.Metrics) error
}

// DeadLetter receives the records of batches that failed to commit
type DeadLetter interface {
	Spill(batchID string, records []tick.Record, cause error) error
}

// Processor drains the transfer queue and writes batches through a Gateway.
// The buffer is owned by the Run goroutine.
type Processor struct {
	cfg     Config
	queue   *queue.Queue[tick.Record]
	gateway storage.Gateway
	engine  *indicator.Engine
	logger  *zap.Logger

	metrics    *observability.Metrics
	publisher  Publisher
	deadLetter DeadLetter
	onFlush    func(Result, error)

	buf   []tick.Record
	state atomic.Int32
}

// Option configures optional collaborators
type Option func(*Processor)

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithPublisher(pub Publisher) Option {
	return func(p *Processor) { p.publisher = pub }
}

func WithDeadLetter(dl DeadLetter) Option {
	return func(p *Processor) { p.deadLetter = dl }
}

// WithFlushHook is called after every flush attempt with its outcome
func WithFlushHook(fn func(Result, error)) Option {
	return func(p *Processor) { p.onFlush = fn }
}

// NewProcessor creates a processor; zero config fields take their defaults
func NewProcessor(cfg Config, q *queue.Queue[tick.Record], gw storage.Gateway, engine *indicator.Engine, logger *zap.Logger, opts ...Option) *Processor {
	def := DefaultConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	p := &Processor{
		cfg:     cfg,
		queue:   q,
		gateway: gw,
		engine:  engine,
		logger:  logger,
		buf:     make([]tick.Record, 0, cfg.Size),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current loop state
func (p *Processor) State() State {
	return State(p.state.Load())
}

// Buffered returns the number of records waiting for the next flush.
// Only meaningful once Run has returned.
func (p *Processor) Buffered() int {
	return len(p.buf)
}

// Run polls the queue until ctx is cancelled, then drains whatever is left
// in the buffer and the queue before returning.
func (p *Processor) Run(ctx context.Context) error {
	p.state.Store(int32(StateWaiting))
	defer p.state.Store(int32(StateStopped))

	p.logger.Info("batch processor started",
		zap.Int("batch_size", p.cfg.Size),
		zap.Duration("flush_interval", p.cfg.FlushInterval),
		zap.Duration("poll_interval", p.cfg.PollInterval),
	)

	// a started flush always runs to completion
	writeCtx := context.WithoutCancel(ctx)
	lastActivity := time.Now()

	idle := time.NewTimer(p.cfg.PollInterval)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			p.drain(writeCtx)
			return nil
		}

		if rec, ok := p.queue.TryPop(); ok {
			p.buf = append(p.buf, rec)
			lastActivity = time.Now()
			if len(p.buf) >= p.cfg.Size {
				p.flush(writeCtx, TriggerSize)
			}
			continue
		}

		if len(p.buf) > 0 && time.Since(lastActivity) > p.cfg.FlushInterval {
			p.flush(writeCtx, TriggerTimeout)
			lastActivity = time.Now()
		}

		idle.Reset(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
		case <-idle.C:
		}
	}
}

// drain moves every remaining queued record into batches and flushes them
func (p *Processor) drain(ctx context.Context) {
	p.state.Store(int32(StateDraining))

	for {
		rec, ok := p.queue.TryPop()
		if !ok {
			break
		}
		p.buf = append(p.buf, rec)
		if len(p.buf) >= p.cfg.Size {
			p.flush(ctx, TriggerShutdown)
		}
	}

	if len(p.buf) > 0 {
		p.logger.Info("flushing final batch", zap.Int("batch_size", len(p.buf)))
		p.flush(ctx, TriggerShutdown)
	}
	p.logger.Info("batch processor stopped")
}

// flush writes the buffer in one transaction. The buffer is cleared whether
// or not the write succeeds; failed batches are not retried.
func (p *Processor) flush(ctx context.Context, trigger Trigger) {
	records := p.buf
	p.buf = make([]tick.Record, 0, p.cfg.Size)

	prev := p.State()
	if prev != StateDraining {
		p.state.Store(int32(StateFlushing))
		defer p.state.Store(int32(StateWaiting))
	}

	batchID := uuid.NewString()
	start := time.Now()
	res, err := p.write(ctx, batchID, records)
	elapsed := time.Since(start)

	p.metrics.FlushObserved(string(trigger), len(records), res.Inserted, res.Duplicates, err, elapsed)
	p.metrics.SetQueueDepth(p.queue.Len())

	if err != nil {
		p.logger.Error("batch write failed, discarding batch",
			zap.String("batch_id", batchID),
			zap.Int("batch_size", len(records)),
			zap.String("trigger", string(trigger)),
			zap.Error(err),
		)
		p.spill(batchID, records, err)
	} else {
		p.logger.Info("batch committed",
			zap.String("batch_id", batchID),
			zap.Int("batch_size", len(records)),
			zap.Int("inserted", res.Inserted),
			zap.Int("duplicates", res.Duplicates),
			zap.String("trigger", string(trigger)),
			zap.Duration("duration", elapsed),
		)
		p.publish(ctx, res)
	}

	if p.onFlush != nil {
		p.onFlush(res, err)
	}
}

// write runs the batch transaction. Indicator updates are staged and only
// applied once the commit succeeds.
func (p *Processor) write(ctx context.Context, batchID string, records []tick.Record) (Result, error) {
	res := Result{BatchID: batchID, Size: len(records)}

	if err := p.gateway.Begin(ctx); err != nil {
		return res, &TxError{Op: OpBegin, BatchID: batchID, BatchSize: len(records), Err: err}
	}

	stage := p.engine.Stage()
	rows := make([]tick.Metrics, 0, len(records))
	duplicates := 0

	for _, rec := range records {
		inserted, err := p.gateway.InsertRaw(ctx, rec)
		if err != nil {
			return res, p.abort(ctx, stage, &TxError{Op: OpInsertRaw, BatchID: batchID, BatchSize: len(records), Err: err})
		}
		if !inserted {
			duplicates++
			continue
		}

		row := stage.Enrich(rec)
		if err := p.gateway.InsertMetrics(ctx, row); err != nil {
			return res, p.abort(ctx, stage, &TxError{Op: OpInsertMetrics, BatchID: batchID, BatchSize: len(records), Err: err})
		}
		rows = append(rows, row)
	}

	if err := p.gateway.Commit(ctx); err != nil {
		return res, p.abort(ctx, stage, &TxError{Op: OpCommit, BatchID: batchID, BatchSize: len(records), Err: err})
	}
	stage.Commit()

	res.Inserted = len(rows)
	res.Duplicates = duplicates
	res.Rows = rows
	return res, nil
}

func (p *Processor) abort(ctx context.Context, stage *indicator.Stage, txErr *TxError) error {
	stage.Discard()
	if err := p.gateway.Rollback(ctx); err != nil && !errors.Is(err, storage.ErrNoTransaction) {
		txErr.RollbackErr = err
	}
	return txErr
}

func (p *Processor) spill(batchID string, records []tick.Record, cause error) {
	if p.deadLetter == nil {
		return
	}
	if err := p.deadLetter.Spill(batchID, records, cause); err != nil {
		p.logger.Error("failed to spill batch to dead letter",
			zap.String("batch_id", batchID),
			zap.Int("batch_size", len(records)),
			zap.Error(err),
		)
		return
	}
	p.metrics.DeadLettered(len(records))
}

func (p *Processor) publish(ctx context.Context, res Result) {
	if p.publisher == nil || len(res.Rows) == 0 {
		return
	}
	if err := p.publisher.PublishMetrics(ctx, res.Rows); err != nil {
		p.metrics.PublishError()
		p.logger.Warn("failed to publish batch metrics",
			zap.String("batch_id", res.BatchID),
			zap.Int("rows", len(res.Rows)),
			zap.Error(err),
		)
	}
}

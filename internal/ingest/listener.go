// Package ingest accepts newline-delimited tick records over TCP and feeds
// parsed records into the transfer queue.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/luksha14/CryptoDataEngine/internal/observability"
	"github.com/luksha14/CryptoDataEngine/internal/queue"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// Close reasons reported to metrics
const (
	reasonEOF      = "eof"
	reasonShutdown = "shutdown"
	reasonError    = "error"
)

// Config holds listener settings
type Config struct {
	Addr string
	// MaxConns caps concurrently served connections; further peers wait in the accept backlog
	MaxConns int
	// MaxLineBytes bounds a single line; longer lines are discarded
	MaxLineBytes int
}

// DefaultConfig returns the default listener settings
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:12345",
		MaxConns:     64,
		MaxLineBytes: 4096,
	}
}

// Listener runs one worker per accepted connection
type Listener struct {
	cfg     Config
	queue   *queue.Queue[tick.Record]
	logger  *zap.Logger
	metrics *observability.Metrics

	ln        net.Listener
	closing   atomic.Bool
	accepting atomic.Bool

	mu    sync.Mutex
	conns map[string]net.Conn
	wg    sync.WaitGroup
}

// Option configures optional collaborators
type Option func(*Listener)

func WithMetrics(m *observability.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// New creates a listener; zero config fields take their defaults
func New(cfg Config, q *queue.Queue[tick.Record], logger *zap.Logger, opts ...Option) *Listener {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = def.MaxConns
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = def.MaxLineBytes
	}

	l := &Listener{
		cfg:    cfg,
		queue:  q,
		logger: logger,
		conns:  make(map[string]net.Conn),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen binds the configured address
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.cfg.Addr, err)
	}
	l.ln = netutil.LimitListener(ln, l.cfg.MaxConns)
	return nil
}

// Addr returns the bound address; nil before Listen
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Accepting reports whether the accept loop is running
func (l *Listener) Accepting() bool {
	return l.accepting.Load()
}

// Serve accepts connections until ctx is cancelled. On cancellation it stops
// accepting, unblocks every worker's pending read and returns once all
// workers have released their connections.
func (l *Listener) Serve(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, l.shutdown)
	defer stop()

	l.accepting.Store(true)
	l.logger.Info("ingest listener accepting",
		zap.String("addr", l.ln.Addr().String()),
		zap.Int("max_conns", l.cfg.MaxConns),
	)

	var acceptErr error
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closing.Load() {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				l.logger.Warn("temporary accept error", zap.Error(err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
			acceptErr = fmt.Errorf("failed to accept connection: %w", err)
			l.shutdown()
			break
		}
		l.serveConn(ctx, conn)
	}
	l.accepting.Store(false)

	l.wg.Wait()
	l.logger.Info("ingest listener stopped")
	return acceptErr
}

func (l *Listener) serveConn(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()

	l.mu.Lock()
	l.conns[id] = conn
	if l.closing.Load() {
		_ = conn.SetReadDeadline(time.Now())
	}
	l.mu.Unlock()

	l.wg.Add(1)
	l.metrics.ConnectionOpened()
	go func() {
		defer l.wg.Done()
		reason := l.handle(ctx, id, conn)

		l.mu.Lock()
		delete(l.conns, id)
		l.mu.Unlock()

		conn.Close()
		l.metrics.ConnectionClosed(reason)
	}()
}

// shutdown closes the listener and expires pending reads
func (l *Listener) shutdown() {
	if l.closing.Swap(true) {
		return
	}
	l.logger.Info("ingest listener shutting down")
	if err := l.ln.Close(); err != nil {
		l.logger.Warn("failed to close listener", zap.Error(err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range l.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
}

// handle reads lines until the peer closes, a read fails or shutdown expires the read
func (l *Listener) handle(ctx context.Context, id string, conn net.Conn) string {
	remote := conn.RemoteAddr().String()
	logger := l.logger.With(zap.String("conn_id", id), zap.String("remote_addr", remote))
	logger.Info("connection accepted")

	r := bufio.NewReaderSize(conn, l.cfg.MaxLineBytes)
	discarding := false
	lines := 0

	for {
		line, err := r.ReadSlice('\n')
		switch {
		case err == nil:
			if discarding {
				discarding = false
				continue
			}
			l.process(logger, line[:len(line)-1])
			lines++
			continue
		case errors.Is(err, bufio.ErrBufferFull):
			if !discarding {
				logger.Warn("line exceeds maximum length, discarding",
					zap.Int("max_line_bytes", l.cfg.MaxLineBytes),
				)
				l.metrics.ParseError()
			}
			discarding = true
			continue
		}

		if len(line) > 0 && !discarding {
			logger.Debug("discarding incomplete trailing line", zap.Int("bytes", len(line)))
		}

		switch {
		case errors.Is(err, io.EOF):
			logger.Info("connection closed by peer", zap.Int("lines", lines))
			return reasonEOF
		case l.closing.Load() || ctx.Err() != nil:
			logger.Info("connection closed on shutdown", zap.Int("lines", lines))
			return reasonShutdown
		default:
			logger.Warn("connection read failed", zap.Int("lines", lines), zap.Error(err))
			return reasonError
		}
	}
}

func (l *Listener) process(logger *zap.Logger, line []byte) {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return
	}
	l.metrics.LineReceived()

	raw := string(line)
	rec, err := tick.Parse(raw)
	if err != nil {
		logger.Warn("failed to parse record",
			zap.String("raw_line", raw),
			zap.Error(err),
		)
		l.metrics.ParseError()
		return
	}

	l.queue.Push(rec)
	l.metrics.RecordEnqueued()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luksha14/CryptoDataEngine/internal/batch"
	"github.com/luksha14/CryptoDataEngine/internal/chaos"
	"github.com/luksha14/CryptoDataEngine/internal/config"
	"github.com/luksha14/CryptoDataEngine/internal/deadletter"
	"github.com/luksha14/CryptoDataEngine/internal/indicator"
	"github.com/luksha14/CryptoDataEngine/internal/ingest"
	"github.com/luksha14/CryptoDataEngine/internal/logging"
	"github.com/luksha14/CryptoDataEngine/internal/msg"
	"github.com/luksha14/CryptoDataEngine/internal/observability"
	"github.com/luksha14/CryptoDataEngine/internal/queue"
	"github.com/luksha14/CryptoDataEngine/internal/storage"
	"github.com/luksha14/CryptoDataEngine/internal/storage/memory"
	"github.com/luksha14/CryptoDataEngine/internal/storage/postgres"
	"github.com/luksha14/CryptoDataEngine/internal/storage/sqlite"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting ohlcv engine",
		zap.String("ingest_addr", cfg.Ingest.Addr),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Int("batch_size", cfg.Batch.Size),
		zap.Duration("flush_interval", cfg.Batch.FlushInterval),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("ohlcv engine stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("ohlcv engine stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics("ohlcv")

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStorage(openCtx, cfg)
	cancelOpen()
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing storage", zap.Error(err))
		}
	}()

	var gateway storage.Gateway = store
	if cfg.Chaos.Enabled {
		logger.Warn("chaos failure injection enabled",
			zap.Int("fail_pct", cfg.Chaos.FailPct),
			zap.Int("fail_after", cfg.Chaos.FailAfter),
			zap.Bool("fail_commit", cfg.Chaos.FailCommit),
		)
		gateway = chaos.New(cfg.Chaos, logger).Wrap(store)
	}

	opts := []batch.Option{batch.WithMetrics(metrics)}
	if cfg.DeadLetterPath != "" {
		sink, err := deadletter.NewFileSink(cfg.DeadLetterPath)
		if err != nil {
			logger.Fatal("failed to create dead-letter sink", zap.Error(err))
		}
		logger.Info("dead-letter sink enabled", zap.String("path", sink.Path()))
		opts = append(opts, batch.WithDeadLetter(sink))
	}
	if cfg.Kafka.Enabled() {
		producer, err := msg.NewProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		defer producer.Close()
		opts = append(opts, batch.WithPublisher(msg.NewMetricsPublisher(producer, cfg.Kafka.MetricsTopic, logger)))
	}

	q := queue.New[tick.Record]()
	engine := indicator.NewEngine(cfg.Indicator.FastPeriod, cfg.Indicator.SlowPeriod)
	processor := batch.NewProcessor(batch.Config{
		Size:          cfg.Batch.Size,
		FlushInterval: cfg.Batch.FlushInterval,
		PollInterval:  cfg.Batch.PollInterval,
	}, q, gateway, engine, logger, opts...)

	listener := ingest.New(ingest.Config{
		Addr:         cfg.Ingest.Addr,
		MaxConns:     cfg.Ingest.MaxConns,
		MaxLineBytes: cfg.Ingest.MaxLineBytes,
	}, q, logger, ingest.WithMetrics(metrics))
	if err := listener.Listen(); err != nil {
		logger.Fatal("failed to bind ingest listener", zap.Error(err))
	}

	healthChecker := observability.NewHealthChecker(logger, metrics)
	healthChecker.AddCheck("storage", store.Ping)
	healthChecker.AddCheck("ingest", func(context.Context) error {
		if !listener.Accepting() {
			return errors.New("listener not accepting")
		}
		return nil
	})

	grpcServer := grpc.NewServer()
	healthChecker.RegisterGRPC(grpcServer)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr())
	if err != nil {
		logger.Fatal("failed to listen on HTTP port", zap.Error(err))
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	ingestCtx, stopIngest := context.WithCancel(context.Background())
	defer stopIngest()
	processCtx, stopProcess := context.WithCancel(context.Background())
	defer stopProcess()

	g, gctx := errgroup.WithContext(context.Background())
	listenerDone := make(chan struct{})
	processorDone := make(chan struct{})

	g.Go(func() error {
		defer close(listenerDone)
		return listener.Serve(ingestCtx)
	})
	g.Go(func() error {
		defer close(processorDone)
		return processor.Run(processCtx)
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := healthChecker.ServeHTTP(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	// producers stop before the queue closes, the queue closes before the
	// processor drains
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			logger.Info("received shutdown signal")
		case <-gctx.Done():
			logger.Warn("component failed, shutting down")
		}

		logger.Info("shutting down gracefully...")
		stopIngest()
		<-listenerDone

		q.Close()
		stopProcess()
		<-processorDone
		logger.Info("pipeline drained",
			zap.Int("queue_len", q.Len()),
			zap.Int("symbols", engine.Symbols()),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := healthChecker.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down health checker", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Storage.PostgresURL, cfg.Storage.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

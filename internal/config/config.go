package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/luksha14/CryptoDataEngine/internal/chaos"
	"github.com/luksha14/CryptoDataEngine/internal/msg"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds configuration for the engine
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"ohlcv-engine"`
	// Log level: debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	GRPCPort int    `env:"PORT_GRPC" envDefault:"50051"`
	HTTPPort int    `env:"PORT_HTTP" envDefault:"8080"`

	Ingest    IngestConfig    `envPrefix:"INGEST_"`
	Batch     BatchConfig     `envPrefix:"BATCH_"`
	Indicator IndicatorConfig `envPrefix:"INDICATOR_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	Kafka     msg.Config      `envPrefix:"KAFKA_"`
	Chaos     chaos.Config    `envPrefix:"CHAOS_"`

	// DeadLetterPath is empty when failed batches are discarded
	DeadLetterPath string `env:"DEADLETTER_PATH"`
}

// IngestConfig holds listener settings
type IngestConfig struct {
	Addr         string `env:"ADDR" envDefault:"127.0.0.1:12345"`
	MaxConns     int    `env:"MAX_CONNS" envDefault:"64"`
	MaxLineBytes int    `env:"MAX_LINE_BYTES" envDefault:"4096"`
}

// BatchConfig holds the flush policy
type BatchConfig struct {
	Size          int           `env:"SIZE" envDefault:"100"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"500ms"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"100ms"`
}

// IndicatorConfig holds the EMA periods
type IndicatorConfig struct {
	FastPeriod int `env:"FAST_PERIOD" envDefault:"20"`
	SlowPeriod int `env:"SLOW_PERIOD" envDefault:"50"`
}

// StorageConfig selects and configures the storage gateway
type StorageConfig struct {
	Driver           string `env:"DRIVER" envDefault:"sqlite"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"./data/crypto_data.db"`
	PostgresURL      string `env:"POSTGRES_URL"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"4"`
}

// Load reads an optional .env file, then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.Size <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.Batch.Size))
	}
	if c.Batch.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_FLUSH_INTERVAL must be positive, got %s", c.Batch.FlushInterval))
	}
	if c.Batch.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_POLL_INTERVAL must be positive, got %s", c.Batch.PollInterval))
	}
	if c.Indicator.FastPeriod <= 0 || c.Indicator.SlowPeriod <= 0 {
		errs = append(errs, fmt.Errorf("indicator periods must be positive, got %d/%d", c.Indicator.FastPeriod, c.Indicator.SlowPeriod))
	} else if c.Indicator.FastPeriod >= c.Indicator.SlowPeriod {
		errs = append(errs, fmt.Errorf("INDICATOR_FAST_PERIOD (%d) must be below INDICATOR_SLOW_PERIOD (%d)", c.Indicator.FastPeriod, c.Indicator.SlowPeriod))
	}
	if c.Ingest.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_MAX_CONNS must be positive, got %d", c.Ingest.MaxConns))
	}
	if c.Ingest.MaxLineBytes < 16 {
		errs = append(errs, fmt.Errorf("INGEST_MAX_LINE_BYTES must be at least 16, got %d", c.Ingest.MaxLineBytes))
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("STORAGE_POSTGRES_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

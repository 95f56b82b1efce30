package msg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by Run when the consumer was closed underneath it
var ErrClientClosed = errors.New("kafka client closed")

// Record is one fetched Kafka record
type Record struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp int64
}

// Handler processes a record; a non-nil error is retried, then the record is skipped
type Handler func(ctx context.Context, rec Record) error

// MetricsHandler processes one decoded metrics message
type MetricsHandler func(ctx context.Context, m MetricsMsg, rec Record) error

// ConsumerOption customises a Consumer
type ConsumerOption func(*Consumer)

// WithRetries sets how many times a failing handler is called per record
// and the initial backoff between calls, doubled after each failure
func WithRetries(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.backoff = backoff
	}
}

// Consumer reads the metrics topic as part of a consumer group, committing
// each record's offset after its handler returns
type Consumer struct {
	client *kgo.Client
	logger *zap.Logger
	topic  string
	group  string

	attempts int
	backoff  time.Duration

	running   atomic.Bool
	handled   atomic.Int64
	skipped   atomic.Int64
	malformed atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewConsumer joins group on cfg.MetricsTopic, reading from the earliest
// offset when the group has no commits yet
func NewConsumer(cfg Config, group string, logger *zap.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("no kafka brokers configured")
	}
	topic := cfg.MetricsTopic
	if topic == "" {
		topic = TopicMarketMetrics
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	c := &Consumer{
		client:   client,
		logger:   logger,
		topic:    topic,
		group:    group,
		attempts: 3,
		backoff:  100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("consumer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("group", group),
		zap.String("topic", topic),
	)

	go c.logStats()

	return c, nil
}

// Run consumes until ctx is done and returns ctx.Err()
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	c.logger.Info("starting consumer", zap.String("group", c.group), zap.String("topic", c.topic))

	c.running.Store(true)
	defer c.running.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("consumer stopping", zap.String("group", c.group))
			return err
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return ErrClientClosed
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if ctx.Err() == nil {
				c.logger.Warn("fetch error",
					zap.String("topic", topic),
					zap.Int32("partition", partition),
					zap.Error(err),
				)
			}
		})

		fetches.EachRecord(func(r *kgo.Record) {
			if ctx.Err() != nil {
				return
			}
			rec := Record{
				Topic:     r.Topic,
				Key:       string(r.Key),
				Value:     r.Value,
				Partition: r.Partition,
				Offset:    r.Offset,
				Timestamp: r.Timestamp.UnixMilli(),
			}

			if err := c.handle(ctx, rec, handler); err != nil {
				c.skipped.Add(1)
				c.logger.Error("skipping record",
					zap.String("key", rec.Key),
					zap.Int32("partition", rec.Partition),
					zap.Int64("offset", rec.Offset),
					zap.Error(err),
				)
			} else {
				c.handled.Add(1)
			}

			if err := c.client.CommitRecords(ctx, r); err != nil && ctx.Err() == nil {
				c.logger.Warn("failed to commit offset", zap.Int64("offset", rec.Offset), zap.Error(err))
			}
		})
	}
}

// RunMetrics is Run with the value decoded as a MetricsMsg. Malformed
// values are logged and skipped without reaching handler.
func (c *Consumer) RunMetrics(ctx context.Context, handler MetricsHandler) error {
	return c.Run(ctx, func(ctx context.Context, rec Record) error {
		var m MetricsMsg
		if err := json.Unmarshal(rec.Value, &m); err != nil {
			c.malformed.Add(1)
			c.logger.Warn("failed to decode metrics message",
				zap.Int64("offset", rec.Offset),
				zap.Error(err),
			)
			return nil
		}
		return handler(ctx, m, rec)
	})
}

func (c *Consumer) handle(ctx context.Context, rec Record, handler Handler) error {
	backoff := c.backoff
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = handler(ctx, rec); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}

		c.logger.Warn("handler failed, retrying",
			zap.String("key", rec.Key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("handler interrupted after %d attempts: %w", attempt, err)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("handler failed after %d attempts: %w", c.attempts, err)
}

// Close leaves the group and closes the client
func (c *Consumer) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.client.Close()
	})
}

// IsRunning reports whether Run is in progress
func (c *Consumer) IsRunning() bool {
	return c.running.Load()
}

func (c *Consumer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.logger.Info("consumer stats",
				zap.String("group", c.group),
				zap.Int64("handled", c.handled.Load()),
				zap.Int64("skipped", c.skipped.Load()),
				zap.Int64("malformed", c.malformed.Load()),
			)
		}
	}
}

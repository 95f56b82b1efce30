package msg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Message is one keyed JSON payload
type Message struct {
	Key   string
	Value any
}

// Producer wraps a Kafka producer
type Producer struct {
	client   *kgo.Client
	logger   *zap.Logger
	produced atomic.Int64
	failed   atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Producer{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	logger.Info("producer initialized",
		zap.Strings("brokers", cfg.Brokers),
	)

	go p.logStats()

	return p, nil
}

// Ping checks broker reachability
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// ProduceJSON produces a single JSON message to topic
func (p *Producer) ProduceJSON(ctx context.Context, topic string, key string, v any) error {
	return p.ProduceJSONBatch(ctx, topic, []Message{{Key: key, Value: v}})
}

// ProduceJSONBatch produces msgs to topic and waits for every ack
func (p *Producer) ProduceJSONBatch(ctx context.Context, topic string, msgs []Message) error {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m.Value)
		if err != nil {
			p.failed.Add(1)
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: topic,
			Key:   []byte(m.Key),
			Value: data,
		})
	}

	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	results := p.client.ProduceSync(produceCtx, records...)
	if err := results.FirstErr(); err != nil {
		p.failed.Add(int64(len(records)))
		return fmt.Errorf("failed to produce %d messages: %w", len(records), err)
	}

	p.produced.Add(int64(len(records)))
	return nil
}

// Close flushes pending records and closes the producer
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.client != nil {
			p.client.Close()
		}
	})
}

// logStats logs producer statistics periodically
func (p *Producer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.logger.Info("producer stats",
				zap.Int64("produced", p.produced.Load()),
				zap.Int64("errors", p.failed.Load()),
			)
		}
	}
}

package msg

import (
	"context"
	"fmt"

	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
)

// BatchProducer sends keyed JSON payloads to a topic
type BatchProducer interface {
	ProduceJSONBatch(ctx context.Context, topic string, msgs []Message) error
}

// MetricsPublisher publishes committed metrics rows keyed by symbol, so rows
// of one symbol stay ordered within a partition
type MetricsPublisher struct {
	producer BatchProducer
	topic    string
	logger   *zap.Logger
}

// NewMetricsPublisher creates a publisher; an empty topic uses TopicMarketMetrics
func NewMetricsPublisher(producer BatchProducer, topic string, logger *zap.Logger) *MetricsPublisher {
	if topic == "" {
		topic = TopicMarketMetrics
	}
	return &MetricsPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishMetrics sends rows in one produce round trip
func (p *MetricsPublisher) PublishMetrics(ctx context.Context, rows []tick.Metrics) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, Message{Key: row.Symbol, Value: FromMetrics(row)})
	}
	if err := p.producer.ProduceJSONBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("failed to publish metrics: %w", err)
	}
	p.logger.Debug("published metrics", zap.String("topic", p.topic), zap.Int("rows", len(rows)))
	return nil
}

//go:build integration
// +build integration

package msg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestIntegration_PublishAndConsumeMetrics(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
	brokers := ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"127.0.0.1:9092"}
	}
	logger := zaptest.NewLogger(t)

	producer, err := NewProducer(Config{Brokers: brokers, ClientID: "it"}, logger)
	require.NoError(t, err)
	defer producer.Close()

	symbol := "IT-" + uuid.NewString()[:8]
	row := tick.Metrics{Symbol: symbol, TradeID: 1, TimestampMs: time.Now().UnixMilli(), EMAFast: 1, EMASlow: 2}
	pub := NewMetricsPublisher(producer, TopicMarketMetrics, logger)
	require.NoError(t, pub.PublishMetrics(context.Background(), []tick.Metrics{row}))

	consumer, err := NewConsumer(Config{Brokers: brokers, ClientID: "it", MetricsTopic: TopicMarketMetrics}, "it-"+uuid.NewString(), logger)
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var got *MetricsMsg
	_ = consumer.RunMetrics(ctx, func(_ context.Context, m MetricsMsg, rec Record) error {
		if m.Symbol == symbol {
			assert.Equal(t, symbol, rec.Key)
			got = &m
			cancel()
		}
		return nil
	})

	require.NotNil(t, got, "published row not consumed")
	assert.Equal(t, row, got.Metrics())
}

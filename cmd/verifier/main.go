package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/luksha14/CryptoDataEngine/internal/logging"
	"github.com/luksha14/CryptoDataEngine/internal/msg"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <duration_seconds> [brokers]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s 30 127.0.0.1:9092\n", os.Args[0])
		os.Exit(1)
	}

	var durationSeconds int
	if _, err := fmt.Sscanf(os.Args[1], "%d", &durationSeconds); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %v\n", err)
		os.Exit(1)
	}

	brokers := "127.0.0.1:9092"
	if len(os.Args) >= 3 {
		brokers = os.Args[2]
	}

	logger, err := logging.NewLogger("verifier", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := msg.ParseBrokers(brokers)
	logger.Info("starting verifier",
		zap.Int("duration_seconds", durationSeconds),
		zap.Strings("brokers", brokerList),
	)

	// a fresh group reads the topic from the start every run
	group := "verifier-" + uuid.NewString()
	consumer, err := msg.NewConsumer(msg.Config{
		Brokers:      brokerList,
		ClientID:     "verifier",
		MetricsTopic: msg.TopicMarketMetrics,
	}, group, logger)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()

	counter := newDeliveryCounter()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(durationSeconds)*time.Second)
	defer cancel()

	err = consumer.RunMetrics(ctx, func(_ context.Context, m msg.MetricsMsg, rec msg.Record) error {
		counter.add(m.Key())

		logger.Debug("consumed metrics",
			zap.String("symbol", m.Symbol),
			zap.Int64("trade_id", m.TradeID),
			zap.Int32("partition", rec.Partition),
			zap.Int64("offset", rec.Offset),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("consumer error", zap.Error(err))
	}

	duplicates := counter.duplicates()

	fmt.Println("\n=== Verification Results ===")
	fmt.Printf("Total messages consumed: %d\n", counter.total)
	fmt.Printf("Unique ticks: %d\n", len(counter.counts))
	fmt.Printf("Duplicate ticks: %d\n", len(duplicates))

	if len(duplicates) > 0 {
		fmt.Println("\nDuplicates found:")
		for key, count := range duplicates {
			fmt.Printf("  %s trade=%d ts=%d count=%d\n", key.Symbol, key.TradeID, key.TimestampMs, count)
		}
		fmt.Println("\nVERIFICATION FAILED: duplicates detected")
		os.Exit(1)
	}

	fmt.Println("\nVERIFICATION PASSED: no duplicates detected")
}

type deliveryCounter struct {
	counts map[tick.Key]int
	total  int
}

func newDeliveryCounter() *deliveryCounter {
	return &deliveryCounter{counts: make(map[tick.Key]int)}
}

func (c *deliveryCounter) add(k tick.Key) {
	c.counts[k]++
	c.total++
}

func (c *deliveryCounter) duplicates() map[tick.Key]int {
	out := make(map[tick.Key]int)
	for k, n := range c.counts {
		if n > 1 {
			out[k] = n
		}
	}
	return out
}

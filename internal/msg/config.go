package msg

import "strings"

// Config holds Kafka configuration
type Config struct {
	// Brokers is empty when publishing is disabled
	Brokers      []string `env:"BROKERS" envSeparator:","`
	ClientID     string   `env:"CLIENT_ID" envDefault:"ohlcv-engine"`
	MetricsTopic string   `env:"METRICS_TOPIC" envDefault:"market.metrics"`
}

// TopicMarketMetrics carries committed derived metrics rows
const TopicMarketMetrics = "market.metrics"

// Enabled reports whether any broker is configured
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// ParseBrokers splits a comma-separated broker list, dropping empty entries
func ParseBrokers(s string) []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

package msg

import "github.com/luksha14/CryptoDataEngine/internal/tick"

// MetricsMsg is the wire form of a committed derived metrics row
type MetricsMsg struct {
	Symbol      string  `json:"symbol"`
	TradeID     int64   `json:"trade_id"`
	TimestampMs int64   `json:"timestamp_ms"`
	VWAPProxy   float64 `json:"vwap"`
	SimpleAvg   float64 `json:"simple_average"`
	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
}

// FromMetrics converts a stored row to its message
func FromMetrics(m tick.Metrics) MetricsMsg {
	return MetricsMsg{
		Symbol:      m.Symbol,
		TradeID:     m.TradeID,
		TimestampMs: m.TimestampMs,
		VWAPProxy:   m.VWAPProxy,
		SimpleAvg:   m.SimpleAvg,
		EMAFast:     m.EMAFast,
		EMASlow:     m.EMASlow,
	}
}

// Metrics converts the message back to a row
func (m MetricsMsg) Metrics() tick.Metrics {
	return tick.Metrics{
		TimestampMs: m.TimestampMs,
		TradeID:     m.TradeID,
		Symbol:      m.Symbol,
		VWAPProxy:   m.VWAPProxy,
		SimpleAvg:   m.SimpleAvg,
		EMAFast:     m.EMAFast,
		EMASlow:     m.EMASlow,
	}
}

// Key identifies the underlying tick
func (m MetricsMsg) Key() tick.Key {
	return tick.Key{Symbol: m.Symbol, TradeID: m.TradeID, TimestampMs: m.TimestampMs}
}

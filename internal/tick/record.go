package tick

// Record represents one OHLCV data point as received from the feed.
// Records are immutable once parsed.
type Record struct {
	TimestampMs int64
	Symbol      string
	TradeID     int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Key identifies a record for idempotent storage
type Key struct {
	Symbol      string
	TradeID     int64
	TimestampMs int64
}

// Key returns the natural idempotency key of the record
func (r Record) Key() Key {
	return Key{Symbol: r.Symbol, TradeID: r.TradeID, TimestampMs: r.TimestampMs}
}

// Metrics is the derived row stored alongside a newly inserted record
type Metrics struct {
	TimestampMs int64
	TradeID     int64
	Symbol      string
	VWAPProxy   float64
	SimpleAvg   float64
	EMAFast     float64
	EMASlow     float64
}

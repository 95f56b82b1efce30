// Package indicator computes incremental moving averages per symbol.
//
// State is kept per (symbol, period) and lives for the process lifetime.
// Memory grows with the number of distinct symbols seen; there is no eviction.
package indicator

// EMA is the state of one exponential moving average
type EMA struct {
	Period      int
	Value       float64
	Initialized bool
}

// Alpha returns the smoothing factor 2 / (period + 1)
func Alpha(period int) float64 {
	return 2.0 / (float64(period) + 1.0)
}

// Next returns the average after observing price, without mutating e.
// The first observation seeds the average with the price itself.
func (e EMA) Next(price float64) EMA {
	if !e.Initialized {
		return EMA{Period: e.Period, Value: price, Initialized: true}
	}
	alpha := Alpha(e.Period)
	return EMA{
		Period:      e.Period,
		Value:       price*alpha + e.Value*(1-alpha),
		Initialized: true,
	}
}

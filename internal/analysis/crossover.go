// Package analysis detects dual moving average crossovers in stored metrics.
package analysis

import "github.com/luksha14/CryptoDataEngine/internal/tick"

// Side of a crossover
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Signal marks the row at which the fast average crossed the slow one
type Signal struct {
	Index int
	Side  Side
	Row   tick.Metrics
}

// Crossovers scans rows in order. A row is "above" when EMAFast > EMASlow;
// a Buy is emitted where a row is above and its predecessor is not, a Sell
// for the reverse. The first row never produces a signal.
func Crossovers(rows []tick.Metrics) []Signal {
	var out []Signal
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].EMAFast > rows[i-1].EMASlow
		cur := rows[i].EMAFast > rows[i].EMASlow
		switch {
		case cur && !prev:
			out = append(out, Signal{Index: i, Side: Buy, Row: rows[i]})
		case prev && !cur:
			out = append(out, Signal{Index: i, Side: Sell, Row: rows[i]})
		}
	}
	return out
}

// Buys filters signals to buys
func Buys(signals []Signal) []Signal {
	var out []Signal
	for _, s := range signals {
		if s.Side == Buy {
			out = append(out, s)
		}
	}
	return out
}

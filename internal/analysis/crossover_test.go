package analysis

import (
	"testing"

	"github.com/luksha14/CryptoDataEngine/internal/indicator"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(pairs ...[2]float64) []tick.Metrics {
	out := make([]tick.Metrics, len(pairs))
	for i, p := range pairs {
		out[i] = tick.Metrics{TradeID: int64(i), Symbol: "BTCUSDT", EMAFast: p[0], EMASlow: p[1]}
	}
	return out
}

func TestCrossovers(t *testing.T) {
	got := Crossovers(rows(
		[2]float64{1, 2}, // below
		[2]float64{3, 2}, // buy
		[2]float64{4, 2},
		[2]float64{2, 2}, // equal is not above: sell
		[2]float64{5, 2}, // buy
	))

	require.Len(t, got, 3)
	assert.Equal(t, Signal{Index: 1, Side: Buy, Row: tick.Metrics{TradeID: 1, Symbol: "BTCUSDT", EMAFast: 3, EMASlow: 2}}, got[0])
	assert.Equal(t, Sell, got[1].Side)
	assert.Equal(t, 3, got[1].Index)
	assert.Equal(t, 4, got[2].Index)

	buys := Buys(got)
	require.Len(t, buys, 2)
	assert.Equal(t, []int{1, 4}, []int{buys[0].Index, buys[1].Index})
}

func TestCrossovers_FirstRowNeverSignals(t *testing.T) {
	assert.Empty(t, Crossovers(rows([2]float64{5, 1})))
	assert.Empty(t, Crossovers(rows([2]float64{5, 1}, [2]float64{6, 1})))
	assert.Empty(t, Crossovers(nil))
}

func TestCrossovers_OnEngineOutput(t *testing.T) {
	// falling then rising prices must produce exactly one buy, after the turn
	e := indicator.NewEngine(3, 6)
	stage := e.Stage()
	var metrics []tick.Metrics
	prices := []float64{10, 9, 8, 7, 6, 5, 6, 7, 8, 9, 10, 11}
	for i, p := range prices {
		metrics = append(metrics, stage.Enrich(tick.Record{Symbol: "BTCUSDT", TradeID: int64(i), Open: p, High: p, Low: p, Close: p}))
	}

	buys := Buys(Crossovers(metrics))
	require.Len(t, buys, 1)
	assert.Greater(t, buys[0].Index, 5)
}

package indicator

import (
	"testing"

	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlpha(t *testing.T) {
	assert.Equal(t, 2.0/21.0, Alpha(20))
	assert.Equal(t, 2.0/51.0, Alpha(50))
	assert.Equal(t, 1.0, Alpha(1))
}

func TestEngine_Seeding(t *testing.T) {
	e := NewEngine(20, 50)

	assert.Equal(t, 100.0, e.Update("BTCUSDT", 20, 100))

	alpha := 2.0 / 21.0
	want := 110*alpha + 100*(1-alpha)
	assert.Equal(t, want, e.Update("BTCUSDT", 20, 110))

	v, ok := e.Value("BTCUSDT", 20)
	require.True(t, ok)
	assert.Equal(t, want, v)
}

func TestEngine_PeriodsIndependent(t *testing.T) {
	e := NewEngine(20, 50)

	e.Update("BTCUSDT", 20, 100)
	// first observation for the slow period seeds independently
	assert.Equal(t, 200.0, e.Update("BTCUSDT", 50, 200))

	fast, ok := e.Value("BTCUSDT", 20)
	require.True(t, ok)
	assert.Equal(t, 100.0, fast)

	_, ok = e.Value("BTCUSDT", 9)
	assert.False(t, ok)
}

func TestEngine_SymbolsIndependent(t *testing.T) {
	e := NewEngine(20, 50)

	// interleave two symbols; each must see only its own history
	e.Update("BTCUSDT", 20, 40000)
	e.Update("ETHUSDT", 20, 2000)
	btc := e.Update("BTCUSDT", 20, 40100)
	eth := e.Update("ETHUSDT", 20, 2010)

	alpha := Alpha(20)
	assert.Equal(t, 40100*alpha+40000*(1-alpha), btc)
	assert.Equal(t, 2010*alpha+2000*(1-alpha), eth)
	assert.Equal(t, 2, e.Symbols())
}

func TestStage_Enrich(t *testing.T) {
	e := NewEngine(20, 50)
	st := e.Stage()

	row := st.Enrich(tick.Record{
		TimestampMs: 1000,
		Symbol:      "BTCUSDT",
		TradeID:     9,
		Open:        10,
		High:        14,
		Low:         8,
		Close:       12,
		Volume:      1,
	})

	assert.Equal(t, tick.Metrics{
		TimestampMs: 1000,
		TradeID:     9,
		Symbol:      "BTCUSDT",
		VWAPProxy:   11,
		SimpleAvg:   11,
		EMAFast:     12,
		EMASlow:     12,
	}, row)

	row = st.Enrich(tick.Record{Symbol: "BTCUSDT", TradeID: 10, Open: 12, High: 20, Low: 10, Close: 18})
	assert.Equal(t, 18*Alpha(20)+12*(1-Alpha(20)), row.EMAFast)
	assert.Equal(t, 18*Alpha(50)+12*(1-Alpha(50)), row.EMASlow)
}

func TestStage_CommitAndDiscard(t *testing.T) {
	e := NewEngine(20, 50)
	e.Update("BTCUSDT", 20, 100)

	st := e.Stage()
	st.Update("BTCUSDT", 20, 200)
	st.Update("ETHUSDT", 20, 5)

	// nothing reaches the engine before commit
	v, _ := e.Value("BTCUSDT", 20)
	assert.Equal(t, 100.0, v)
	assert.Equal(t, 1, e.Symbols())

	st.Discard()
	v, _ = e.Value("BTCUSDT", 20)
	assert.Equal(t, 100.0, v)

	st = e.Stage()
	expected := st.Update("BTCUSDT", 20, 200)
	st.Commit()

	v, _ = e.Value("BTCUSDT", 20)
	assert.Equal(t, expected, v)
}

func TestNewEngine_Defaults(t *testing.T) {
	fast, slow := NewEngine(0, -1).Periods()
	assert.Equal(t, DefaultFastPeriod, fast)
	assert.Equal(t, DefaultSlowPeriod, slow)
}

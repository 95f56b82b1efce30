package tick

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormed(t *testing.T) {
	rec, err := Parse("1700000000123,BTCUSDT,42,101.5,102.25,100.75,101.125,0.00345000")
	require.NoError(t, err)

	assert.Equal(t, Record{
		TimestampMs: 1700000000123,
		Symbol:      "BTCUSDT",
		TradeID:     42,
		Open:        101.5,
		High:        102.25,
		Low:         100.75,
		Close:       101.125,
		Volume:      0.00345,
	}, rec)
}

func TestParse_TrailingCarriageReturn(t *testing.T) {
	rec, err := Parse("1,ETHUSDT,7,1,2,0.5,1.5,10\r")
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.Volume)

	// only a single trailing CR is stripped
	_, err = Parse("1,ETHUSDT,7,1,2,0.5,1.5,10\r\r")
	var convErr *FieldConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 7, convErr.FieldIndex)
}

func TestParse_RoundTrip(t *testing.T) {
	lines := []string{
		"1700000000000,BTCUSDT,1,43250.12,43250.12,43250.12,43250.12,0.015",
		"0,X,0,0,0,0,0,0",
		"9223372036854775807,SOLUSDT,-5,1e-8,123456789.987654321,3,4,5",
	}

	for _, line := range lines {
		rec, err := Parse(line)
		require.NoError(t, err, line)

		again, err := Parse(Format(rec))
		require.NoError(t, err)
		assert.Equal(t, rec, again, line)
	}
}

func TestParse_FieldCount(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		actual int
	}{
		{name: "seven fields", line: "1,BTCUSDT,2,3,4,5,6", actual: 7},
		{name: "nine fields", line: "1,BTCUSDT,2,3,4,5,6,7,8", actual: 9},
		{name: "empty line", line: "", actual: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Parse(tc.line)
			require.Error(t, err)
			assert.Equal(t, Record{}, rec)
			assert.True(t, errors.Is(err, ErrParse))

			var malformed *MalformedRecordError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, FieldCount, malformed.Expected)
			assert.Equal(t, tc.actual, malformed.Actual)
		})
	}
}

func TestParse_Conversion(t *testing.T) {
	testCases := []struct {
		name  string
		line  string
		index int
		raw   string
	}{
		{name: "timestamp not numeric", line: "abc,BTCUSDT,1,1,1,1,1,1", index: 0, raw: "abc"},
		{name: "negative timestamp", line: "-1,BTCUSDT,1,1,1,1,1,1", index: 0, raw: "-1"},
		{name: "empty symbol", line: "1,,1,1,1,1,1,1", index: 1, raw: ""},
		{name: "trade id float", line: "1,BTCUSDT,1.5,1,1,1,1,1", index: 2, raw: "1.5"},
		{name: "open not numeric", line: "1,BTCUSDT,1,x,1,1,1,1", index: 3, raw: "x"},
		{name: "close not numeric", line: "1,BTCUSDT,1,1,1,1,price,1", index: 6, raw: "price"},
		{name: "volume NaN", line: "1,BTCUSDT,1,1,1,1,1,NaN", index: 7, raw: "NaN"},
		{name: "high infinite", line: "1,BTCUSDT,1,1,+Inf,1,1,1", index: 4, raw: "+Inf"},
		{name: "timestamp overflow", line: "9223372036854775808,BTCUSDT,1,1,1,1,1,1", index: 0, raw: "9223372036854775808"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Parse(tc.line)
			require.Error(t, err)
			assert.Equal(t, Record{}, rec)
			assert.True(t, errors.Is(err, ErrParse))

			var convErr *FieldConversionError
			require.ErrorAs(t, err, &convErr)
			assert.Equal(t, tc.index, convErr.FieldIndex)
			assert.Equal(t, tc.raw, convErr.RawValue)
		})
	}
}

func TestRecord_Key(t *testing.T) {
	rec := Record{TimestampMs: 10, Symbol: "BTCUSDT", TradeID: 3}
	assert.Equal(t, Key{Symbol: "BTCUSDT", TradeID: 3, TimestampMs: 10}, rec.Key())
}

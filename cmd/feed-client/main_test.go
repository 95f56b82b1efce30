package main

import (
	"strings"
	"testing"

	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_LinesParse(t *testing.T) {
	gen := newGenerator(7, []string{"BTCUSDT", "ETHUSDT"}, 0)
	for i := 0; i < 200; i++ {
		line := formatLine(gen.next())
		rec, err := tick.Parse(strings.TrimSuffix(line, "\n"))
		require.NoError(t, err, line)
		assert.Equal(t, rec.Open, rec.Close)
		assert.Equal(t, rec.High, rec.Low)
	}
	assert.Equal(t, 200, gen.unique)
	assert.Zero(t, gen.duplicates)
}

func TestGenerator_Duplicates(t *testing.T) {
	gen := newGenerator(1, []string{"BTCUSDT"}, 50)
	seen := make(map[tick.Key]int)
	for i := 0; i < 500; i++ {
		seen[gen.next().Key()]++
	}
	assert.Equal(t, gen.unique, len(seen))
	assert.Greater(t, gen.duplicates, 0)
	assert.Equal(t, 500, gen.unique+gen.duplicates)
}

func TestGenerator_Deterministic(t *testing.T) {
	a := newGenerator(3, []string{"BTCUSDT"}, 10)
	b := newGenerator(3, []string{"BTCUSDT"}, 10)
	b.clock = a.clock
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.next(), b.next())
	}
}

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, parseSymbols(" btcusdt,,ETHUSDT "))
}

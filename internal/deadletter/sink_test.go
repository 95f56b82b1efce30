package deadletter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_AppendsReplayableBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spill", "failed.csv")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	sink.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	first := []tick.Record{
		{TimestampMs: 1, Symbol: "BTCUSDT", TradeID: 10, Open: 1.5, High: 2, Low: 1, Close: 1.75, Volume: 3},
		{TimestampMs: 2, Symbol: "ETHUSDT", TradeID: 11, Open: 10, High: 10, Low: 10, Close: 10, Volume: 0.5},
	}
	require.NoError(t, sink.Spill("b-1", first, errors.New("commit failed:\ndisk full")))
	require.NoError(t, sink.Spill("b-2", first[:1], nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 5)

	assert.Equal(t, "# batch=b-1 records=2 at=2024-01-02T03:04:05Z cause=commit failed: disk full", lines[0])
	assert.Equal(t, "# batch=b-2 records=1 at=2024-01-02T03:04:05Z cause=unknown", lines[3])

	var replayed []tick.Record
	for _, l := range lines {
		if strings.HasPrefix(l, "#") {
			continue
		}
		rec, err := tick.Parse(l)
		require.NoError(t, err)
		replayed = append(replayed, rec)
	}
	assert.Equal(t, []tick.Record{first[0], first[1], first[0]}, replayed)
}

func TestNewFileSink_BadDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewFileSink(filepath.Join(blocker, "sub", "dl.csv"))
	assert.Error(t, err)
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/luksha14/CryptoDataEngine/internal/logging"
	"github.com/luksha14/CryptoDataEngine/internal/tick"
	"go.uber.org/zap"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:12345", "Engine ingest address")
		symbols = flag.String("symbols", "BTCUSDT", "Comma-separated symbols")
		count   = flag.Int("count", 1000, "Number of lines to send")
		dupPct  = flag.Int("dup-pct", 0, "Percentage of lines that resend an earlier trade (0-100)")
		seed    = flag.Int64("seed", 42, "Random seed for deterministic generation")
		rate    = flag.Int("rate", 0, "Lines per second, 0 for unthrottled")
	)
	flag.Parse()

	logger, err := logging.NewLogger("feed-client", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	symbolList := parseSymbols(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("no symbols given")
	}

	logger.Info("starting feed client",
		zap.String("addr", *addr),
		zap.Strings("symbols", symbolList),
		zap.Int("count", *count),
		zap.Int("dup_pct", *dupPct),
		zap.Int64("seed", *seed),
		zap.Int("rate", *rate),
	)

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		logger.Fatal("failed to connect to engine", zap.Error(err))
	}
	defer conn.Close()

	var throttle <-chan time.Time
	if *rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(*rate))
		defer ticker.Stop()
		throttle = ticker.C
	}

	gen := newGenerator(*seed, symbolList, *dupPct)
	w := bufio.NewWriter(conn)
	sent := 0
	for i := 0; i < *count; i++ {
		if throttle != nil {
			<-throttle
		}
		if _, err := w.WriteString(formatLine(gen.next())); err != nil {
			logger.Fatal("failed to write line", zap.Int("sent", sent), zap.Error(err))
		}
		sent++
		if throttle != nil || sent%500 == 0 {
			if err := w.Flush(); err != nil {
				logger.Fatal("failed to flush lines", zap.Int("sent", sent), zap.Error(err))
			}
		}
		if sent%50 == 0 {
			logger.Debug("sent trades", zap.Int("sent", sent))
		}
	}
	if err := w.Flush(); err != nil {
		logger.Fatal("failed to flush lines", zap.Int("sent", sent), zap.Error(err))
	}

	logger.Info("feed client completed",
		zap.Int("sent", sent),
		zap.Int("unique", gen.unique),
		zap.Int("duplicates", gen.duplicates),
	)

	fmt.Printf("\n=== Feed Summary ===\n")
	fmt.Printf("Lines sent: %d\n", sent)
	fmt.Printf("Unique trades: %d\n", gen.unique)
	fmt.Printf("Duplicate trades: %d\n", gen.duplicates)
	fmt.Printf("\n")
}

// generator walks one price per symbol and occasionally replays a sent trade
type generator struct {
	rng        *rand.Rand
	symbols    []string
	prices     map[string]float64
	nextID     map[string]int64
	sent       []tick.Record
	dupPct     int
	clock      int64
	unique     int
	duplicates int
}

func newGenerator(seed int64, symbols []string, dupPct int) *generator {
	g := &generator{
		rng:     rand.New(rand.NewSource(seed)),
		symbols: symbols,
		prices:  make(map[string]float64, len(symbols)),
		nextID:  make(map[string]int64, len(symbols)),
		dupPct:  dupPct,
		clock:   time.Now().UnixMilli(),
	}
	for _, s := range symbols {
		g.prices[s] = 100 + g.rng.Float64()*900
		g.nextID[s] = 1
	}
	return g
}

func (g *generator) next() tick.Record {
	if len(g.sent) > 0 && g.rng.Intn(100) < g.dupPct {
		g.duplicates++
		return g.sent[g.rng.Intn(len(g.sent))]
	}

	symbol := g.symbols[g.rng.Intn(len(g.symbols))]
	price := g.prices[symbol] * (1 + (g.rng.Float64()-0.5)*0.002)
	g.prices[symbol] = price
	g.clock += int64(1 + g.rng.Intn(50))

	// all OHLC fields carry the trade price, like a trade stream
	rec := tick.Record{
		TimestampMs: g.clock,
		Symbol:      symbol,
		TradeID:     g.nextID[symbol],
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      g.rng.Float64() * 2,
	}
	g.nextID[symbol]++
	g.sent = append(g.sent, rec)
	g.unique++
	return rec
}

func formatLine(r tick.Record) string {
	return fmt.Sprintf("%d,%s,%d,%.8f,%.8f,%.8f,%.8f,%.8f\n",
		r.TimestampMs, r.Symbol, r.TradeID, r.Open, r.High, r.Low, r.Close, r.Volume)
}

func parseSymbols(s string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

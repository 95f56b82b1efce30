package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/luksha14/CryptoDataEngine/internal/analysis"
	"github.com/luksha14/CryptoDataEngine/internal/logging"
	"github.com/luksha14/CryptoDataEngine/internal/storage/sqlite"
	"go.uber.org/zap"
)

func main() {
	var (
		dbPath = flag.String("db", "./data/crypto_data.db", "SQLite database written by the engine")
		symbol = flag.String("symbol", "BTCUSDT", "Symbol to analyze")
		sells  = flag.Bool("sells", false, "Also list sell crossovers")
	)
	flag.Parse()

	logger, err := logging.NewLogger("analyzer", "warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if _, err := os.Stat(*dbPath); err != nil {
		logger.Fatal("database not found", zap.String("db", *dbPath), zap.Error(err))
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rows, err := store.ListMetrics(ctx, *symbol)
	if err != nil {
		logger.Fatal("failed to load metrics", zap.Error(err))
	}
	raw, err := store.CountRaw(ctx, *symbol)
	if err != nil {
		logger.Fatal("failed to count raw rows", zap.Error(err))
	}

	if len(rows) == 0 {
		fmt.Printf("No data found for symbol %s in %s.\n", *symbol, *dbPath)
		os.Exit(1)
	}

	signals := analysis.Crossovers(rows)
	buys := analysis.Buys(signals)

	fmt.Printf("\n=== Analysis for %s ===\n", *symbol)
	fmt.Printf("Raw rows: %d\n", raw)
	fmt.Printf("Metrics rows: %d\n", len(rows))
	fmt.Printf("Buy signals (fast EMA crosses above slow): %d\n", len(buys))

	for _, s := range signals {
		if s.Side == analysis.Sell && !*sells {
			continue
		}
		ts := time.UnixMilli(s.Row.TimestampMs).UTC().Format("2006-01-02 15:04:05.000")
		fmt.Printf("  %-4s %s trade=%d vwap=%.8f ema_fast=%.8f ema_slow=%.8f\n",
			s.Side, ts, s.Row.TradeID, s.Row.VWAPProxy, s.Row.EMAFast, s.Row.EMASlow)
	}
	fmt.Printf("\n")
}

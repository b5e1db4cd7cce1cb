//! Backtest Runner - Executable for running option strategy backtests
//!
//! Reads a strategy definition from JSON, runs it against the ClickHouse
//! bar store and writes the merged trade book to CSV, JSON or Arrow IPC.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Helambe-vaibhav/BACKTest/services/arrowpipeline"
	"github.com/Helambe-vaibhav/BACKTest/services/clickhouse"
	"github.com/Helambe-vaibhav/BACKTest/services/engine"
)

func main() {
	var (
		strategyFile = flag.String("strategy", "", "Path to strategy JSON file")
		output       = flag.String("output", "trades.csv", "Output file for the trade book")
		format       = flag.String("format", "csv", "Output format: 'csv', 'json' or 'arrow'")
		chAddr       = flag.String("clickhouse", "localhost:9000", "ClickHouse address")
		chDatabase   = flag.String("database", "backtest", "ClickHouse database")
		chTable      = flag.String("table", "data", "ClickHouse bars table")
		chUser       = flag.String("user", "default", "ClickHouse username")
		chPassword   = flag.String("password", "", "ClickHouse password")
		legTimeout   = flag.Int("leg-timeout", 0, "Per-leg timeout in seconds (0 = none)")
		verbose      = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if *strategyFile == "" {
		fmt.Println("Error: -strategy flag is required")
		flag.Usage()
		os.Exit(1)
	}

	logger, err := buildLogger(*verbose)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	raw, err := os.ReadFile(*strategyFile)
	if err != nil {
		logger.Fatal("Failed to read strategy file", zap.Error(err))
	}

	var cfg engine.StrategyConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.Fatal("Failed to parse strategy file", zap.Error(err))
	}
	if *legTimeout > 0 {
		cfg.LegTimeoutSeconds = *legTimeout
	}

	store, err := clickhouse.NewStore(clickhouse.Config{
		Addr:     *chAddr,
		Database: *chDatabase,
		Table:    *chTable,
		Username: *chUser,
		Password: *chPassword,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	book, err := engine.New(store, logger).Run(ctx, cfg)
	if err != nil {
		logger.Fatal("Backtest failed", zap.Error(err))
	}

	if err := writeBook(book, *output, *format, logger); err != nil {
		logger.Fatal("Failed to write trade book", zap.Error(err))
	}

	fmt.Printf("==> Backtest complete: %d trades in %s\n", len(book.Trades), time.Since(start).Round(time.Millisecond))
	fmt.Printf("==> Total profit: %s\n", book.TotalProfit().String())
	fmt.Printf("==> Max drawdown: %s\n", book.MaxDrawdown().String())
	if book.Partial {
		fmt.Printf("==> WARNING: %d leg(s) failed, results are partial\n", len(book.LegErrors))
		for _, le := range book.LegErrors {
			fmt.Printf("    leg %s: %s\n", le.Leg, le.Err)
		}
	}
	fmt.Printf("==> Trade book written to %s\n", *output)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func writeBook(book *engine.TradeBook, path, format string, logger *zap.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "csv":
		return book.WriteCSV(f)
	case "json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(book)
	case "arrow":
		return arrowpipeline.NewPipeline(logger).WriteTradeBook(f, book)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

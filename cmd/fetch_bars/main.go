package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"fxengine/config"
	"fxengine/internal/adapters/binanceclient"
	"fxengine/internal/adapters/logger"
	"fxengine/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to fetch (defaults to SYMBOL from config)")
	interval := flag.String("interval", "", "bar interval (defaults to INTERVAL from config)")
	months := flag.Int("months", 3, "months of history to fetch")
	out := flag.String("out", "", "output CSV path (default data/<symbol>_<interval>_<range>.csv)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	ctx := context.Background()

	// 3. Initialize Exchange Client (Binance Adapter)
	feed, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	if *symbol == "" {
		*symbol = cfg.Symbol
	}
	if *interval == "" {
		*interval = cfg.Interval
	}
	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	appLogger.Info(ctx, "Fetching bars", map[string]interface{}{
		"symbol":   *symbol,
		"interval": *interval,
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
	})
	bars, err := feed.GetBarsRange(ctx, *symbol, *interval, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"count": len(bars)})

	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", *symbol, *interval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := utils.WriteBarsToCSV(bars, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved bars", map[string]interface{}{"filename": filename, "count": len(bars)})
}

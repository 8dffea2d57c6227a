package main

import (
	"context"
	"flag"
	"log"

	"fxengine/config"
	"fxengine/internal/adapters/logger"
	"fxengine/internal/analytics"
	"fxengine/internal/backtest"
	"fxengine/internal/report"
	"fxengine/internal/risk"
	"fxengine/internal/strategy"
	"fxengine/internal/trailing"
	"fxengine/internal/utils"
)

func main() {
	dataFile := flag.String("data", "", "CSV file with historical bars (required)")
	reportFile := flag.String("report", "backtest_report.html", "output HTML report")
	tradesFile := flag.String("trades", "", "optional CSV output for closed trades")
	flag.Parse()

	if *dataFile == "" {
		log.Fatal("FATAL: -data is required")
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	ctx := context.Background()

	// 2. Load bars from CSV
	bars, err := utils.ReadBarsFromCSV(*dataFile)
	if err != nil {
		appLogger.Error(ctx, err, "Error loading bars", map[string]interface{}{"filename": *dataFile})
		log.Fatalf("Error loading bars: %v", err)
	}
	appLogger.Info(ctx, "Loaded bars", map[string]interface{}{
		"filename": *dataFile,
		"count":    len(bars),
	})

	// 3. Build the decision components from the strategy file
	riskMgr, err := risk.NewManager(cfg.Risk, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to create risk manager: %v", err)
	}

	var trailEng *trailing.Engine
	if cfg.Trailing.Enabled || cfg.Trailing.BreakevenEnabled {
		trailEng, err = trailing.NewEngine(cfg.Trailing, appLogger)
		if err != nil {
			log.Fatalf("FATAL: Failed to create trailing engine: %v", err)
		}
	}

	strat, err := strategy.New(strategy.Config{
		Rules:          cfg.Rules,
		MaxHoldingBars: cfg.MaxHoldingBars,
		WarmupBars:     cfg.WarmupBars,
		PipValuePerLot: cfg.PipValuePerLot,
	}, riskMgr, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to create strategy: %v", err)
	}

	// 4. Run the simulation
	engine, err := backtest.NewEngine(cfg.Backtest, appLogger, trailEng)
	if err != nil {
		log.Fatalf("FATAL: Failed to create backtest engine: %v", err)
	}

	result, err := engine.Run(ctx, bars, strat)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest error")
		log.Fatalf("Backtest error: %v", err)
	}

	// 5. Compute and report performance metrics
	metrics := analytics.Calculate(result.Trades, result.EquityCurve)
	appLogger.Info(ctx, "Backtest result", map[string]interface{}{
		"Trades":       metrics.TotalTrades,
		"WinRate":      metrics.WinRate,
		"NetProfit":    metrics.NetProfit,
		"ProfitFactor": metrics.ProfitFactor,
		"MaxDD":        metrics.MaxDrawdown,
		"MaxDDPct":     metrics.MaxDrawdownPct,
		"Sharpe":       metrics.SharpeRatio,
		"FinalBalance": result.FinalBalance,
	})

	if *tradesFile != "" {
		if err := utils.WriteTradesToCSV(result.Trades, *tradesFile); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
		} else {
			appLogger.Info(ctx, "Trades saved to", map[string]interface{}{"filename": *tradesFile})
		}
	}

	if err := report.WriteHTML(report.Input{
		Title:   "Backtest Report",
		Symbol:  cfg.Symbol,
		Result:  result,
		Metrics: metrics,
	}, *reportFile); err != nil {
		appLogger.Error(ctx, err, "Error writing report")
		log.Fatalf("Error writing report: %v", err)
	}
	appLogger.Info(ctx, "Report saved to", map[string]interface{}{"filename": *reportFile})
}

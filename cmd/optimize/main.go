package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"fxengine/config"
	"fxengine/internal/adapters/logger"
	"fxengine/internal/report"
	"fxengine/internal/strategy"
	"fxengine/internal/strategy/optimization"
	"fxengine/internal/utils"
)

func main() {
	dataFile := flag.String("data", "", "CSV file with historical bars (required)")
	sweep := flag.String("sweep", "stop_loss_value:30:70:10", "comma-separated ranges as name:min:max:step")
	top := flag.Int("top", 10, "number of top combinations to print")
	reportFile := flag.String("report", "", "optional HTML report for the best combination")
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
		log.Fatalf("Error loading bars: %v", err)
	}
	appLogger.Info(ctx, "Loaded bars", map[string]interface{}{
		"filename": *dataFile,
		"count":    len(bars),
	})

	// 3. Parse the sweep specification
	ranges, err := parseSweep(*sweep)
	if err != nil {
		log.Fatalf("FATAL: Invalid -sweep: %v", err)
	}

	optCfg := optimization.Config{
		Ranges: ranges,
		Risk:   cfg.Risk,
		Strategy: strategy.Config{
			Rules:          cfg.Rules,
			MaxHoldingBars: cfg.MaxHoldingBars,
			WarmupBars:     cfg.WarmupBars,
			PipValuePerLot: cfg.PipValuePerLot,
		},
		Backtest: cfg.Backtest,
	}
	if cfg.Trailing.Enabled || cfg.Trailing.BreakevenEnabled {
		trailCfg := cfg.Trailing
		optCfg.Trailing = &trailCfg
	}

	opt, err := optimization.New(optCfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to create optimizer: %v", err)
	}

	// 4. Run the grid search
	results, err := opt.Run(ctx, bars)
	if err != nil {
		log.Fatalf("Optimization error: %v", err)
	}
	appLogger.Info(ctx, "Optimization finished", map[string]interface{}{
		"combinations": len(results),
	})

	// 5. Report the best combinations
	limit := *top
	if limit > len(results) {
		limit = len(results)
	}
	for i := 0; i < limit; i++ {
		r := results[i]
		appLogger.Info(ctx, fmt.Sprintf("Rank %d", i+1), map[string]interface{}{
			"score":        r.Score,
			"params":       r.Parameters,
			"trades":       r.Metrics.TotalTrades,
			"netProfit":    r.Metrics.NetProfit,
			"winRate":      r.Metrics.WinRate,
			"profitFactor": r.Metrics.ProfitFactor,
			"maxDDPct":     r.Metrics.MaxDrawdownPct,
		})
	}

	if *reportFile != "" && len(results) > 0 {
		best := results[0]
		if err := report.WriteHTML(report.Input{
			Title:   "Optimization Best Run",
			Symbol:  cfg.Symbol,
			Result:  best.Backtest,
			Metrics: best.Metrics,
		}, *reportFile); err != nil {
			log.Fatalf("Error writing report: %v", err)
		}
		appLogger.Info(ctx, "Report saved to", map[string]interface{}{"filename": *reportFile})
	}
}

// parseSweep turns "name:min:max:step,..." into parameter ranges. Integer
// parameters (max_holding_bars) are rounded during expansion.
func parseSweep(spec string) ([]optimization.ParameterRange, error) {
	var ranges []optimization.ParameterRange
	for _, part := range strings.Split(spec, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 4 {
			return nil, fmt.Errorf("range %q: want name:min:max:step", part)
		}
		values := make([]float64, 3)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", part, err)
			}
			values[i] = v
		}
		ranges = append(ranges, optimization.ParameterRange{
			Name:  fields[0],
			Min:   values[0],
			Max:   values[1],
			Step:  values[2],
			IsInt: fields[0] == optimization.ParamMaxHoldingBars,
		})
	}
	return ranges, nil
}

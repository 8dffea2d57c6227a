package main

import (
	"context"
	"log"

	"fxengine/config"
	"fxengine/internal/adapters/binanceclient"
	"fxengine/internal/adapters/logger"
	"fxengine/internal/adapters/paperexec"
	"fxengine/internal/app"
	"fxengine/internal/risk"
	"fxengine/internal/trailing"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     cfg.LogOutput,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Market Feed (Binance Adapter)
	feed, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 4. Decision components
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

	// Orders stay on paper; swap in a broker-backed executor to go live.
	executor := paperexec.New(appLogger)

	svc, err := app.NewLiveService(app.Config{
		Symbol:          cfg.Symbol,
		Interval:        cfg.Interval,
		PollInterval:    cfg.PollInterval,
		WarmupBars:      cfg.WarmupBars,
		MaxTradesPerDay: cfg.MaxTradesPerDay,
		PipValuePerLot:  cfg.PipValuePerLot,
		AccountBalance:  cfg.AccountBalance,
		Rules:           cfg.Rules,
	}, appLogger, feed, executor, riskMgr, trailEng)
	if err != nil {
		log.Fatalf("FATAL: Failed to create live service: %v", err)
	}

	if err := svc.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Live service stopped with error")
		log.Fatalf("Live service stopped with error: %v", err)
	}
	appLogger.Info(ctx, "Live service stopped")
}

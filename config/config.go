package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fxengine/internal/backtest"
	"fxengine/internal/domain"
	"fxengine/internal/risk"
	"fxengine/internal/trailing"
)

// Config holds all application configuration: runtime settings from the
// environment plus the typed strategy definition loaded from a YAML file.
// Loosely-typed file content is validated here, once, at the boundary; the
// core only ever sees the typed form.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market
	Symbol   string
	Interval string

	// Live service
	PollInterval    time.Duration
	MaxTradesPerDay int
	AccountBalance  float64

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// Strategy file (YAML)
	StrategyFile string

	// Typed sections from the strategy file
	Rules          []domain.Rule
	Risk           risk.Config
	Trailing       trailing.Config
	Backtest       backtest.Config
	MaxHoldingBars int
	WarmupBars     int
	PipValuePerLot float64
}

// raw mirrors the YAML strategy file before boundary validation.
type raw struct {
	Rules []struct {
		ID          string `mapstructure:"id"`
		Condition   string `mapstructure:"condition"`
		Action      string `mapstructure:"action"`
		Description string `mapstructure:"description"`
	} `mapstructure:"rules"`
	Risk struct {
		StopLossType    string  `mapstructure:"stop_loss_type"`
		StopLossValue   float64 `mapstructure:"stop_loss_value"`
		TakeProfitType  string  `mapstructure:"take_profit_type"`
		TakeProfitValue float64 `mapstructure:"take_profit_value"`
		RiskPerTrade    float64 `mapstructure:"risk_per_trade"`
		MinLot          float64 `mapstructure:"min_lot"`
		MaxLot          float64 `mapstructure:"max_lot"`
		PipSize         float64 `mapstructure:"pip_size"`
	} `mapstructure:"risk"`
	Trailing struct {
		Enabled             bool    `mapstructure:"enabled"`
		Type                string  `mapstructure:"type"`
		ActivationPips      float64 `mapstructure:"activation_pips"`
		TrailPips           float64 `mapstructure:"trail_pips"`
		ATRMultiplier       float64 `mapstructure:"atr_multiplier"`
		TrailPercent        float64 `mapstructure:"trail_percent"`
		BreakevenEnabled    bool    `mapstructure:"breakeven_enabled"`
		BreakevenPips       float64 `mapstructure:"breakeven_pips"`
		BreakevenOffsetPips float64 `mapstructure:"breakeven_offset_pips"`
	} `mapstructure:"trailing"`
	Backtest struct {
		InitialBalance         float64 `mapstructure:"initial_balance"`
		CommissionPerLot       float64 `mapstructure:"commission_per_lot"`
		SlippagePips           float64 `mapstructure:"slippage_pips"`
		SpreadPips             float64 `mapstructure:"spread_pips"`
		PyramidingAllowed      bool    `mapstructure:"pyramiding_allowed"`
		MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions"`
	} `mapstructure:"backtest"`
	Strategy struct {
		MaxHoldingBars int     `mapstructure:"max_holding_bars"`
		WarmupBars     int     `mapstructure:"warmup_bars"`
		PipValuePerLot float64 `mapstructure:"pip_value_per_lot"`
	} `mapstructure:"strategy"`
}

// LoadConfig loads environment configuration (.env supported) and, if a
// strategy file is configured, the typed strategy definition.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true)

	cfg.Symbol = getEnv("SYMBOL", "EURUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	cfg.Interval = getEnv("INTERVAL", "1h")

	pollSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 60)
	if pollSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	cfg.MaxTradesPerDay = getEnvAsInt("MAX_TRADES_PER_DAY", 5)
	if cfg.MaxTradesPerDay < 0 {
		errs = append(errs, "MAX_TRADES_PER_DAY cannot be negative")
	}

	cfg.AccountBalance = getEnvAsFloat("ACCOUNT_BALANCE", 10000)
	if cfg.AccountBalance <= 0 {
		errs = append(errs, "ACCOUNT_BALANCE must be positive")
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "text")
	cfg.LogOutput = getEnv("LOG_OUTPUT", "stdout")

	cfg.StrategyFile = getEnv("STRATEGY_FILE", "strategy.yaml")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	if cfg.StrategyFile != "" {
		if err := cfg.LoadStrategyFile(cfg.StrategyFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadStrategyFile reads the YAML strategy definition and validates it into
// the typed rule/risk/trailing/backtest sections.
func (c *Config) LoadStrategyFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading strategy file %s: %w", path, err)
	}

	var r raw
	if err := v.Unmarshal(&r); err != nil {
		return fmt.Errorf("parsing strategy file %s: %w", path, err)
	}

	var errs []string

	rules := make([]domain.Rule, 0, len(r.Rules))
	for i, rr := range r.Rules {
		action, err := domain.ParseRuleAction(rr.Action)
		if err != nil {
			errs = append(errs, fmt.Sprintf("rule %d (%s): %v", i, rr.ID, err))
			continue
		}
		if rr.Condition == "" {
			errs = append(errs, fmt.Sprintf("rule %d (%s): condition is required", i, rr.ID))
			continue
		}
		id := rr.ID
		if id == "" {
			id = fmt.Sprintf("rule_%d", i)
		}
		rules = append(rules, domain.Rule{
			ID:          id,
			Condition:   rr.Condition,
			Action:      action,
			Description: rr.Description,
		})
	}
	c.Rules = rules

	slType, err := domain.ParseStopLossType(defaultStr(r.Risk.StopLossType, string(domain.StopLossFixedPips)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("risk: %v", err))
	}
	tpType, err := domain.ParseTakeProfitType(defaultStr(r.Risk.TakeProfitType, string(domain.TakeProfitRiskReward)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("risk: %v", err))
	}
	c.Risk = risk.Config{
		StopLossType:    slType,
		StopLossValue:   r.Risk.StopLossValue,
		TakeProfitType:  tpType,
		TakeProfitValue: r.Risk.TakeProfitValue,
		RiskPerTrade:    r.Risk.RiskPerTrade,
		MinLot:          r.Risk.MinLot,
		MaxLot:          r.Risk.MaxLot,
		PipSize:         r.Risk.PipSize,
	}

	trailType := domain.TrailingFixedPips
	if r.Trailing.Type != "" {
		trailType, err = domain.ParseTrailingType(r.Trailing.Type)
		if err != nil {
			errs = append(errs, fmt.Sprintf("trailing: %v", err))
		}
	}
	c.Trailing = trailing.Config{
		Enabled:             r.Trailing.Enabled,
		Type:                trailType,
		ActivationPips:      r.Trailing.ActivationPips,
		TrailPips:           r.Trailing.TrailPips,
		ATRMultiplier:       r.Trailing.ATRMultiplier,
		TrailPercent:        r.Trailing.TrailPercent,
		BreakevenEnabled:    r.Trailing.BreakevenEnabled,
		BreakevenPips:       r.Trailing.BreakevenPips,
		BreakevenOffsetPips: r.Trailing.BreakevenOffsetPips,
		PipSize:             r.Risk.PipSize,
	}

	c.MaxHoldingBars = r.Strategy.MaxHoldingBars
	c.WarmupBars = r.Strategy.WarmupBars
	c.PipValuePerLot = r.Strategy.PipValuePerLot
	if c.PipValuePerLot <= 0 {
		c.PipValuePerLot = 10
	}

	c.Backtest = backtest.Config{
		InitialBalance:         r.Backtest.InitialBalance,
		CommissionPerLot:       r.Backtest.CommissionPerLot,
		SlippagePips:           r.Backtest.SlippagePips,
		SpreadPips:             r.Backtest.SpreadPips,
		PipValuePerLot:         c.PipValuePerLot,
		PipSize:                r.Risk.PipSize,
		PyramidingAllowed:      r.Backtest.PyramidingAllowed,
		MaxConcurrentPositions: r.Backtest.MaxConcurrentPositions,
	}
	if c.Backtest.InitialBalance <= 0 {
		c.Backtest.InitialBalance = 10000
	}

	if len(errs) > 0 {
		return fmt.Errorf("strategy file validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

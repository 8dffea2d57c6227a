package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"fxengine/internal/analytics"
	"fxengine/internal/backtest"
	"fxengine/internal/domain"
	"fxengine/internal/ports"
	"fxengine/internal/risk"
	"fxengine/internal/strategy"
	"fxengine/internal/trailing"
)

// ParameterRange defines a sweep over one named parameter.
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Names accepted in ParameterRange.Name.
const (
	ParamStopLossValue   = "stop_loss_value"
	ParamTakeProfitValue = "take_profit_value"
	ParamRiskPerTrade    = "risk_per_trade"
	ParamMaxHoldingBars  = "max_holding_bars"
	ParamActivationPips  = "activation_pips"
	ParamTrailPips       = "trail_pips"
	ParamBreakevenPips   = "breakeven_pips"
)

// Result holds the outcome of one parameter combination.
type Result struct {
	Parameters map[string]float64
	Metrics    *analytics.Metrics
	Backtest   *backtest.Result
	Score      float64
}

// Config holds the base configurations the sweep mutates and the score
// used to rank combinations.
type Config struct {
	Ranges   []ParameterRange
	Risk     risk.Config
	Strategy strategy.Config
	Backtest backtest.Config
	Trailing *trailing.Config // nil disables adaptive stops
	Score    func(*analytics.Metrics) float64
}

// Optimizer grid-searches strategy parameters by running one independent
// backtest per combination. Each combination gets its own engine and
// strategy instance, so runs never share mutable state.
type Optimizer struct {
	cfg    Config
	logger ports.Logger
}

// New creates an optimizer.
func New(cfg Config, logger ports.Logger) (*Optimizer, error) {
	if len(cfg.Ranges) == 0 {
		return nil, fmt.Errorf("at least one parameter range is required")
	}
	for _, r := range cfg.Ranges {
		if r.Step <= 0 {
			return nil, fmt.Errorf("parameter %q: step must be positive, got %f", r.Name, r.Step)
		}
		if r.Min > r.Max {
			return nil, fmt.Errorf("parameter %q: min %f exceeds max %f", r.Name, r.Min, r.Max)
		}
	}
	if cfg.Score == nil {
		cfg.Score = DefaultScore
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Optimizer{cfg: cfg, logger: logger}, nil
}

// Run evaluates every parameter combination against the bar sequence and
// returns the results sorted by score, best first. Combinations that fail
// to construct or run are logged and skipped.
func (o *Optimizer) Run(ctx context.Context, bars []domain.Bar) ([]Result, error) {
	combinations := o.combinations()
	if len(combinations) == 0 {
		return nil, fmt.Errorf("parameter ranges produced no combinations")
	}

	resultChan := make(chan Result, len(combinations))
	var wg sync.WaitGroup
	for _, params := range combinations {
		wg.Add(1)
		go func(params map[string]float64) {
			defer wg.Done()
			res, err := o.evaluate(ctx, bars, params)
			if err != nil {
				o.logger.Warn(ctx, "parameter combination skipped", map[string]interface{}{
					"params": params, "error": err.Error(),
				})
				return
			}
			resultChan <- res
		}(params)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(combinations))
	for res := range resultChan {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (o *Optimizer) evaluate(ctx context.Context, bars []domain.Bar, params map[string]float64) (Result, error) {
	riskCfg, stratCfg, trailCfg := o.apply(params)

	riskMgr, err := risk.NewManager(riskCfg, o.logger)
	if err != nil {
		return Result{}, fmt.Errorf("building risk manager: %w", err)
	}
	strat, err := strategy.New(stratCfg, riskMgr, o.logger)
	if err != nil {
		return Result{}, fmt.Errorf("building strategy: %w", err)
	}
	var trailEng *trailing.Engine
	if trailCfg != nil {
		trailEng, err = trailing.NewEngine(*trailCfg, o.logger)
		if err != nil {
			return Result{}, fmt.Errorf("building trailing engine: %w", err)
		}
	}
	engine, err := backtest.NewEngine(o.cfg.Backtest, o.logger, trailEng)
	if err != nil {
		return Result{}, fmt.Errorf("building simulator: %w", err)
	}

	btRes, err := engine.Run(ctx, bars, strat)
	if err != nil {
		return Result{}, err
	}
	metrics := analytics.Calculate(btRes.Trades, btRes.EquityCurve)
	return Result{
		Parameters: params,
		Metrics:    metrics,
		Backtest:   btRes,
		Score:      o.cfg.Score(metrics),
	}, nil
}

// apply copies the base configurations and overrides the swept parameters.
func (o *Optimizer) apply(params map[string]float64) (risk.Config, strategy.Config, *trailing.Config) {
	riskCfg := o.cfg.Risk
	stratCfg := o.cfg.Strategy
	var trailCfg *trailing.Config
	if o.cfg.Trailing != nil {
		c := *o.cfg.Trailing
		trailCfg = &c
	}

	for name, value := range params {
		switch name {
		case ParamStopLossValue:
			riskCfg.StopLossValue = value
		case ParamTakeProfitValue:
			riskCfg.TakeProfitValue = value
		case ParamRiskPerTrade:
			riskCfg.RiskPerTrade = value
		case ParamMaxHoldingBars:
			stratCfg.MaxHoldingBars = int(value)
		case ParamActivationPips:
			if trailCfg != nil {
				trailCfg.ActivationPips = value
			}
		case ParamTrailPips:
			if trailCfg != nil {
				trailCfg.TrailPips = value
			}
		case ParamBreakevenPips:
			if trailCfg != nil {
				trailCfg.BreakevenPips = value
			}
		}
	}
	return riskCfg, stratCfg, trailCfg
}

// combinations expands the parameter ranges into the full grid.
func (o *Optimizer) combinations() []map[string]float64 {
	var out []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(idx int) {
		if idx == len(o.cfg.Ranges) {
			combo := make(map[string]float64, len(current))
			for k, v := range current {
				combo[k] = v
			}
			out = append(out, combo)
			return
		}
		r := o.cfg.Ranges[idx]
		// Half-step epsilon keeps the endpoint despite float accumulation.
		for value := r.Min; value <= r.Max+r.Step/2; value += r.Step {
			v := value
			if r.IsInt {
				v = math.Round(v)
			}
			current[r.Name] = v
			generate(idx + 1)
		}
		delete(current, r.Name)
	}
	generate(0)
	return out
}

// DefaultScore ranks combinations by profitability damped by drawdown.
func DefaultScore(m *analytics.Metrics) float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	score := m.NetProfit
	if m.MaxDrawdownPct > 0 {
		score /= 1 + m.MaxDrawdownPct/100
	}
	score += m.ProfitFactor * 10
	return score
}

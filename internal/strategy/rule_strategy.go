package strategy

import (
	"context"
	"fmt"

	"fxengine/internal/backtest"
	"fxengine/internal/domain"
	"fxengine/internal/indicators"
	"fxengine/internal/ports"
	"fxengine/internal/risk"
	"fxengine/internal/rules"
)

// Config holds parameters for the rule-driven strategy.
type Config struct {
	Rules          []domain.Rule
	MaxHoldingBars int // 0 disables the holding-time exit
	WarmupBars     int // bars of history required before evaluating rules
	PipValuePerLot float64
	Indicators     indicators.Config
}

// RuleStrategy trades externally authored rules: each bar it computes an
// indicator snapshot, closes positions whose exit rules fire, and opens a
// position when an entry rule authorizes a direction. Stops, targets and
// sizing come from the risk manager.
type RuleStrategy struct {
	cfg    Config
	logger ports.Logger
	rules  *rules.Engine
	risk   *risk.Manager
}

// New creates a rule-driven strategy.
func New(cfg Config, riskMgr *risk.Manager, logger ports.Logger) (*RuleStrategy, error) {
	if riskMgr == nil {
		return nil, fmt.Errorf("risk manager is required")
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if cfg.PipValuePerLot <= 0 {
		return nil, fmt.Errorf("pip value per lot must be positive, got %.4f", cfg.PipValuePerLot)
	}
	if cfg.MaxHoldingBars < 0 {
		return nil, fmt.Errorf("max holding bars cannot be negative, got %d", cfg.MaxHoldingBars)
	}
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = 50
	}
	if cfg.Indicators.RSIPeriod == 0 && cfg.Indicators.ATRPeriod == 0 &&
		len(cfg.Indicators.EMAPeriods) == 0 && len(cfg.Indicators.SMAPeriods) == 0 {
		cfg.Indicators = indicators.DefaultConfig()
	}
	return &RuleStrategy{
		cfg:    cfg,
		logger: logger,
		rules:  rules.NewEngine(logger),
		risk:   riskMgr,
	}, nil
}

// OnBar implements backtest.Strategy.
func (s *RuleStrategy) OnBar(ctx context.Context, e *backtest.Engine) error {
	bars := e.Bars()
	if len(bars) < s.cfg.WarmupBars {
		return nil
	}

	columns, err := indicators.BuildSnapshot(bars, s.cfg.Indicators)
	if err != nil {
		s.logger.Warn(ctx, "indicator snapshot unavailable, skipping bar", map[string]interface{}{
			"bar_index": e.BarIndex(), "error": err.Error(),
		})
		return nil
	}
	snapshot := rules.Snapshot(columns)

	s.checkExits(ctx, e, snapshot)
	s.checkEntry(ctx, e, snapshot)
	return nil
}

func (s *RuleStrategy) checkExits(ctx context.Context, e *backtest.Engine, snapshot rules.Snapshot) {
	for _, pos := range e.Positions() {
		if s.cfg.MaxHoldingBars > 0 && pos.BarsHeld >= s.cfg.MaxHoldingBars {
			if err := e.ClosePosition(ctx, pos.ID, domain.ExitReasonMaxHoldingTime); err != nil {
				s.logger.Error(ctx, err, "failed to close position past holding limit",
					map[string]interface{}{"position_id": pos.ID})
			}
			continue
		}

		res := s.rules.EvaluateExit(ctx, s.exitRules(), snapshot, pos.Direction,
			pos.EntryPrice, pos.StopLoss, pos.TakeProfit)
		if res.Triggered {
			if err := e.ClosePosition(ctx, pos.ID, domain.ExitReasonSignal); err != nil {
				s.logger.Error(ctx, err, "failed to close position on exit signal",
					map[string]interface{}{"position_id": pos.ID})
			}
		}
	}
}

// checkEntry opens at most one position per bar. Unlike live proposal
// validation, which is fail-open, the autonomous strategy only acts when a
// rule actually matched.
func (s *RuleStrategy) checkEntry(ctx context.Context, e *backtest.Engine, snapshot rules.Snapshot) {
	if len(e.Positions()) > 0 {
		return
	}

	for _, dir := range []domain.Direction{domain.Buy, domain.Sell} {
		res := s.rules.EvaluateEntry(ctx, s.cfg.Rules, snapshot, dir)
		if !res.Valid || len(res.MatchedRules) == 0 {
			continue
		}

		price := e.CurrentPrice()
		atr := snapshot["ATR"]
		stopLoss := s.risk.StopLoss(ctx, price, dir, atr)
		takeProfit := s.risk.TakeProfit(ctx, price, dir, stopLoss, atr)
		lots := s.risk.PositionSize(ctx, e.Balance(), price, stopLoss, s.cfg.PipValuePerLot)

		if violations := s.risk.Validate(price, dir, stopLoss, takeProfit); len(violations) > 0 {
			s.logger.Warn(ctx, "entry skipped: risk validation failed", map[string]interface{}{
				"direction": dir, "violations": violations,
			})
			return
		}

		var err error
		if dir == domain.Buy {
			_, err = e.Buy(ctx, lots, stopLoss, takeProfit)
		} else {
			_, err = e.Sell(ctx, lots, stopLoss, takeProfit)
		}
		if err != nil {
			s.logger.Warn(ctx, "entry order rejected", map[string]interface{}{
				"direction": dir, "error": err.Error(),
			})
			return
		}
		s.logger.Info(ctx, "entry order placed", map[string]interface{}{
			"direction": dir, "lots": lots, "stop_loss": stopLoss,
			"take_profit": takeProfit, "matched_rules": res.MatchedRules,
		})
		return
	}
}

func (s *RuleStrategy) exitRules() []domain.Rule {
	out := make([]domain.Rule, 0, len(s.cfg.Rules))
	for _, r := range s.cfg.Rules {
		if r.Action == domain.ActionClose {
			out = append(out, r)
		}
	}
	return out
}

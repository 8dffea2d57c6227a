package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"fxengine/internal/domain"
	"fxengine/internal/indicators"
	"fxengine/internal/ports"
	"fxengine/internal/risk"
	"fxengine/internal/rules"
	"fxengine/internal/trailing"
)

const maxBarCacheSize = 500

// Config holds the parameters the live service needs beyond its injected
// dependencies.
type Config struct {
	Symbol          string
	Interval        string
	PollInterval    time.Duration
	WarmupBars      int
	MaxTradesPerDay int
	PipValuePerLot  float64
	AccountBalance  float64 // sizing balance; live balance sync is out of scope
	Rules           []domain.Rule
	Indicators      indicators.Config
}

// LiveService runs the decision core against a live market feed: it polls
// for new bars, evaluates entry and exit rules, computes stops and sizing,
// and turns trailing-stop updates into executor commands. The service only
// decides; transmission to the broker happens behind ports.OrderExecutor.
type LiveService struct {
	cfg      Config
	logger   ports.Logger
	feed     ports.MarketFeed
	executor ports.OrderExecutor
	riskMgr  *risk.Manager
	ruleEng  *rules.Engine
	tracker  *trailing.Tracker

	mu              sync.Mutex // Protects the state fields below
	barCache        []domain.Bar
	currentPosition *domain.Position
	tradesToday     int
	tradesDay       time.Time
	lastBarTime     time.Time
}

// NewLiveService creates the live trading service.
func NewLiveService(
	cfg Config,
	logger ports.Logger,
	feed ports.MarketFeed,
	executor ports.OrderExecutor,
	riskMgr *risk.Manager,
	trailEng *trailing.Engine,
) (*LiveService, error) {
	if logger == nil || feed == nil || executor == nil || riskMgr == nil {
		return nil, fmt.Errorf("missing required dependencies for LiveService")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("configuration Symbol is required")
	}
	if cfg.PipValuePerLot <= 0 {
		return nil, fmt.Errorf("configuration PipValuePerLot must be positive")
	}
	if cfg.AccountBalance <= 0 {
		return nil, fmt.Errorf("configuration AccountBalance must be positive")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = 50
	}
	if cfg.Indicators.RSIPeriod == 0 && cfg.Indicators.ATRPeriod == 0 &&
		len(cfg.Indicators.EMAPeriods) == 0 && len(cfg.Indicators.SMAPeriods) == 0 {
		cfg.Indicators = indicators.DefaultConfig()
	}

	var tracker *trailing.Tracker
	if trailEng != nil {
		var err error
		tracker, err = trailing.NewTracker(trailEng)
		if err != nil {
			return nil, fmt.Errorf("creating stop tracker: %w", err)
		}
	}

	return &LiveService{
		cfg:      cfg,
		logger:   logger,
		feed:     feed,
		executor: executor,
		riskMgr:  riskMgr,
		ruleEng:  rules.NewEngine(logger),
		tracker:  tracker,
		barCache: make([]domain.Bar, 0, maxBarCacheSize),
	}, nil
}

// Start loads warmup history and then polls the feed until the context is
// cancelled or a termination signal arrives.
func (s *LiveService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting live service", map[string]interface{}{
		"symbol": s.cfg.Symbol, "interval": s.cfg.Interval,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	history, err := s.feed.GetBars(ctx, s.cfg.Symbol, s.cfg.Interval, maxBarCacheSize)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load warmup history")
		return fmt.Errorf("loading warmup history: %w", err)
	}
	if len(history) < s.cfg.WarmupBars {
		return fmt.Errorf("not enough history loaded (%d) to meet warmup requirement (%d)",
			len(history), s.cfg.WarmupBars)
	}
	s.mu.Lock()
	s.barCache = history
	s.lastBarTime = history[len(history)-1].Time
	s.mu.Unlock()
	s.logger.Info(ctx, "Warmup history loaded", map[string]interface{}{"bars": len(history)})

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Live service stopped")
			return nil
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				s.logger.Error(ctx, err, "Poll failed")
			}
		}
	}
}

// poll fetches the latest bars and processes any that are new.
func (s *LiveService) poll(ctx context.Context) error {
	bars, err := s.feed.GetBars(ctx, s.cfg.Symbol, s.cfg.Interval, 3)
	if err != nil {
		return fmt.Errorf("fetching bars: %w", err)
	}
	for _, bar := range bars {
		s.mu.Lock()
		isNew := bar.Time.After(s.lastBarTime)
		s.mu.Unlock()
		if isNew {
			s.processBar(ctx, bar)
		}
	}
	return nil
}

// processBar runs one decision cycle: exits and stop updates first, then
// entry evaluation.
func (s *LiveService) processBar(ctx context.Context, bar domain.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.barCache = append(s.barCache, bar)
	if len(s.barCache) > maxBarCacheSize {
		s.barCache = s.barCache[len(s.barCache)-maxBarCacheSize:]
	}
	s.lastBarTime = bar.Time

	columns, err := indicators.BuildSnapshot(s.barCache, s.cfg.Indicators)
	if err != nil {
		s.logger.Warn(ctx, "Indicator snapshot unavailable, skipping bar", map[string]interface{}{
			"time": bar.Time, "error": err.Error(),
		})
		return
	}
	snapshot := rules.Snapshot(columns)

	if s.currentPosition != nil {
		closed := s.manageOpenPosition(ctx, bar, snapshot)
		if closed {
			return
		}
	}
	if s.currentPosition == nil {
		s.evaluateEntry(ctx, bar, snapshot)
	}
}

// manageOpenPosition applies trailing updates and exit rules. Returns true
// if the position was closed this bar.
// Caller must hold s.mu.
func (s *LiveService) manageOpenPosition(ctx context.Context, bar domain.Bar, snapshot rules.Snapshot) bool {
	op := "manageOpenPosition"
	pos := s.currentPosition

	if s.tracker != nil {
		atr := indicators.ATR(s.barCache, s.cfg.Indicators.ATRPeriod)
		for _, upd := range s.tracker.UpdatePrice(ctx, bar.Close, atr) {
			if upd.PositionID != pos.ID {
				continue
			}
			if upd.NewStopLoss != nil {
				if err := s.executor.ModifyStopLoss(ctx, pos.ID, *upd.NewStopLoss); err != nil {
					s.logger.Error(ctx, err, op+": failed to transmit stop modification",
						map[string]interface{}{"positionID": pos.ID, "newStopLoss": *upd.NewStopLoss})
					continue
				}
				pos.StopLoss = *upd.NewStopLoss
				s.logger.Info(ctx, op+": stop-loss moved", map[string]interface{}{
					"positionID": pos.ID, "stopLoss": pos.StopLoss, "breakeven": upd.BreakevenTriggered,
				})
			}
			if upd.ShouldClose && s.closePosition(ctx, domain.ExitReasonStopLoss) {
				return true
			}
		}
	}

	res := s.ruleEng.EvaluateExit(ctx, s.exitRules(), snapshot, pos.Direction,
		pos.EntryPrice, pos.StopLoss, pos.TakeProfit)
	if res.Triggered {
		s.logger.Info(ctx, op+": exit rule fired", map[string]interface{}{
			"positionID": pos.ID, "matchedRules": res.MatchedRules,
		})
		if s.closePosition(ctx, domain.ExitReasonSignal) {
			return true
		}
	}
	s.currentPosition.BarsHeld++
	return false
}

// evaluateEntry proposes both directions against the entry rules and
// submits an order for the first authorized one.
// Caller must hold s.mu.
func (s *LiveService) evaluateEntry(ctx context.Context, bar domain.Bar, snapshot rules.Snapshot) {
	op := "evaluateEntry"
	if ok, reason := s.canTrade(bar.Time); !ok {
		s.logger.Debug(ctx, op+": cannot trade now", map[string]interface{}{"reason": reason})
		return
	}

	for _, dir := range []domain.Direction{domain.Buy, domain.Sell} {
		res := s.ruleEng.EvaluateEntry(ctx, s.cfg.Rules, snapshot, dir)
		if !res.Valid || len(res.MatchedRules) == 0 {
			continue
		}

		price := bar.Close
		atr := snapshot["ATR"]
		stopLoss := s.riskMgr.StopLoss(ctx, price, dir, atr)
		takeProfit := s.riskMgr.TakeProfit(ctx, price, dir, stopLoss, atr)
		lots := s.riskMgr.PositionSize(ctx, s.cfg.AccountBalance, price, stopLoss, s.cfg.PipValuePerLot)

		if violations := s.riskMgr.Validate(price, dir, stopLoss, takeProfit); len(violations) > 0 {
			s.logger.Warn(ctx, op+": risk validation failed", map[string]interface{}{
				"direction": dir, "violations": violations,
			})
			return
		}

		order := domain.Order{
			ID:          uuid.NewString(),
			Symbol:      s.cfg.Symbol,
			Direction:   dir,
			Lots:        lots,
			EntryPrice:  price,
			StopLoss:    stopLoss,
			TakeProfit:  takeProfit,
			Status:      domain.OrderPending,
			CreatedTime: bar.Time,
		}
		if err := s.executor.SubmitOrder(ctx, order); err != nil {
			s.logger.Error(ctx, err, op+": failed to submit order", map[string]interface{}{
				"direction": dir, "lots": lots,
			})
			return
		}

		// Track the position locally at the requested price; the executor
		// owns the real fill.
		s.currentPosition = &domain.Position{
			ID:         order.ID,
			Symbol:     order.Symbol,
			Direction:  dir,
			Lots:       lots,
			EntryPrice: price,
			EntryTime:  bar.Time,
			StopLoss:   stopLoss,
			TakeProfit: takeProfit,
			Extreme:    price,
		}
		if s.tracker != nil {
			s.tracker.Add(s.currentPosition)
		}
		s.tradesToday++
		s.logger.Info(ctx, op+": order submitted", map[string]interface{}{
			"orderID": order.ID, "direction": dir, "lots": lots,
			"stopLoss": stopLoss, "takeProfit": takeProfit, "matchedRules": res.MatchedRules,
		})
		return
	}
}

// closePosition requests a market close and clears local state. Returns
// false when the close could not be transmitted; the position then stays
// tracked and is retried on the next bar.
// Caller must hold s.mu.
func (s *LiveService) closePosition(ctx context.Context, reason domain.ExitReason) bool {
	op := "closePosition"
	pos := s.currentPosition
	if pos == nil {
		return false
	}
	if err := s.executor.ClosePosition(ctx, pos.ID, reason); err != nil {
		s.logger.Error(ctx, err, op+": failed to transmit close", map[string]interface{}{
			"positionID": pos.ID, "reason": reason,
		})
		return false
	}
	s.logger.Info(ctx, op+": position closed", map[string]interface{}{
		"positionID": pos.ID, "reason": reason, "barsHeld": pos.BarsHeld,
	})
	if s.tracker != nil {
		s.tracker.Remove(pos.ID)
	}
	s.currentPosition = nil
	return true
}

// canTrade checks the daily trade limit, resetting the counter on day
// rollover. Caller must hold s.mu.
func (s *LiveService) canTrade(now time.Time) (bool, string) {
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(s.tradesDay) {
		s.tradesDay = day
		s.tradesToday = 0
	}
	if s.cfg.MaxTradesPerDay > 0 && s.tradesToday >= s.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("daily trade limit reached (%d/%d)", s.tradesToday, s.cfg.MaxTradesPerDay)
	}
	return true, ""
}

func (s *LiveService) exitRules() []domain.Rule {
	out := make([]domain.Rule, 0, len(s.cfg.Rules))
	for _, r := range s.cfg.Rules {
		if r.Action == domain.ActionClose {
			out = append(out, r)
		}
	}
	return out
}

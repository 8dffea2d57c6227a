package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fxengine/internal/domain"
	"fxengine/internal/indicators"
	"fxengine/internal/ports"
	"fxengine/internal/trailing"
)

// Config holds the cost model and position limits for a simulation run.
type Config struct {
	InitialBalance         float64
	CommissionPerLot       float64 // account currency, charged once at fill
	SlippagePips           float64
	SpreadPips             float64
	PipValuePerLot         float64 // account currency per pip for one standard lot
	PipSize                float64 // price units per pip, defaults to domain.DefaultPipSize
	PyramidingAllowed      bool
	MaxConcurrentPositions int
	ATRPeriod              int // window for the ATR fed to trailing updates
}

// Result holds the output of a completed simulation.
type Result struct {
	Trades         []*domain.Trade
	EquityCurve    []float64
	InitialBalance float64
	FinalBalance   float64
	FinalEquity    float64
	TotalTrades    int
}

// Engine replays a strategy against historical bars. Each bar is processed
// in fixed stages: exit checks against the bar's high/low, fills of orders
// pending from the previous bar, the strategy step, the equity snapshot,
// and holding-time bookkeeping. A position opened on bar N can therefore
// never be exited using bar N's own range.
type Engine struct {
	cfg      Config
	logger   ports.Logger
	trailEng *trailing.Engine

	bars      []domain.Bar
	barIndex  int
	balance   float64
	pending   []*domain.Order
	positions []*domain.Position
	trades    []*domain.Trade
	equity    []float64
	tracker   *trailing.Tracker
}

// NewEngine validates the configuration and returns a simulator. The
// trailing engine is optional; pass nil to run with static stops only.
func NewEngine(cfg Config, logger ports.Logger, trailEng *trailing.Engine) (*Engine, error) {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", cfg.InitialBalance)
	}
	if cfg.PipValuePerLot <= 0 {
		return nil, fmt.Errorf("pip value per lot must be positive, got %.4f", cfg.PipValuePerLot)
	}
	if cfg.CommissionPerLot < 0 {
		return nil, fmt.Errorf("commission per lot cannot be negative, got %.4f", cfg.CommissionPerLot)
	}
	if cfg.SlippagePips < 0 || cfg.SpreadPips < 0 {
		return nil, fmt.Errorf("slippage and spread cannot be negative")
	}
	if cfg.MaxConcurrentPositions <= 0 {
		cfg.MaxConcurrentPositions = 1
	}
	if cfg.PipSize <= 0 {
		cfg.PipSize = domain.DefaultPipSize
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	return &Engine{cfg: cfg, logger: logger, trailEng: trailEng}, nil
}

// Run replays the strategy over the bar sequence and returns the trade
// list, equity curve and final balances. Bars must be in strictly
// increasing timestamp order. An empty bar sequence yields an empty,
// well-formed result.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar, strat Strategy) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("bars must be strictly increasing in time: bar %d (%s) not after bar %d (%s)",
				i, bars[i].Time, i-1, bars[i-1].Time)
		}
	}

	e.bars = bars
	e.barIndex = 0
	e.balance = e.cfg.InitialBalance
	e.pending = nil
	e.positions = nil
	e.trades = nil
	e.equity = []float64{e.cfg.InitialBalance}
	e.tracker = nil
	if e.trailEng != nil {
		tracker, err := trailing.NewTracker(e.trailEng)
		if err != nil {
			return nil, fmt.Errorf("creating stop tracker: %w", err)
		}
		e.tracker = tracker
	}

	if len(bars) == 0 {
		return e.result(), nil
	}

	if init, ok := strat.(Initializer); ok {
		if err := init.Initialize(ctx, e); err != nil {
			return nil, fmt.Errorf("strategy initialization failed: %w", err)
		}
	}

	for i := range bars {
		e.barIndex = i
		bar := bars[i]

		e.checkExits(ctx, bar)
		e.fillPending(ctx, bar)

		if err := strat.OnBar(ctx, e); err != nil {
			return nil, fmt.Errorf("strategy failed on bar %d: %w", i, err)
		}

		e.equity = append(e.equity, e.balance+e.unrealized(bar.Close))

		for _, pos := range e.positions {
			pos.BarsHeld++
			pos.UpdateExtreme(bar.Close)
		}
	}

	// Remaining positions are liquidated at the last close; orders still
	// queued never reach the market.
	finalBar := bars[len(bars)-1]
	for len(e.positions) > 0 {
		e.close(e.positions[0], finalBar.Close, finalBar.Time, domain.ExitReasonEndOfBacktest)
	}
	for _, ord := range e.pending {
		ord.Status = domain.OrderCancelled
	}
	e.pending = nil

	return e.result(), nil
}

func (e *Engine) result() *Result {
	return &Result{
		Trades:         e.trades,
		EquityCurve:    e.equity,
		InitialBalance: e.cfg.InitialBalance,
		FinalBalance:   e.balance,
		FinalEquity:    e.balance,
		TotalTrades:    len(e.trades),
	}
}

// checkExits tests every open position's stop and target against the
// bar's range, then lets the trailing engine advance stops using the
// bar's close.
func (e *Engine) checkExits(ctx context.Context, bar domain.Bar) {
	open := make([]*domain.Position, len(e.positions))
	copy(open, e.positions)
	for _, pos := range open {
		switch pos.Direction {
		case domain.Buy:
			if pos.StopLoss > 0 && bar.Low <= pos.StopLoss {
				e.close(pos, pos.StopLoss, bar.Time, domain.ExitReasonStopLoss)
			} else if pos.TakeProfit > 0 && bar.High >= pos.TakeProfit {
				e.close(pos, pos.TakeProfit, bar.Time, domain.ExitReasonTakeProfit)
			}
		case domain.Sell:
			if pos.StopLoss > 0 && bar.High >= pos.StopLoss {
				e.close(pos, pos.StopLoss, bar.Time, domain.ExitReasonStopLoss)
			} else if pos.TakeProfit > 0 && bar.Low <= pos.TakeProfit {
				e.close(pos, pos.TakeProfit, bar.Time, domain.ExitReasonTakeProfit)
			}
		}
	}

	if e.tracker == nil || e.tracker.Len() == 0 {
		return
	}
	atr := indicators.ATR(e.bars[:e.barIndex+1], e.cfg.ATRPeriod)
	for _, upd := range e.tracker.UpdatePrice(ctx, bar.Close, atr) {
		pos := e.findPosition(upd.PositionID)
		if pos == nil {
			e.tracker.Remove(upd.PositionID)
			continue
		}
		if upd.NewStopLoss != nil {
			pos.StopLoss = *upd.NewStopLoss
		}
		if upd.ShouldClose {
			e.close(pos, bar.Close, bar.Time, domain.ExitReasonStopLoss)
		}
	}
}

// fillPending converts orders queued on the previous bar into positions.
// Spread and slippage both move the fill against the trader; commission is
// debited from the balance immediately.
func (e *Engine) fillPending(ctx context.Context, bar domain.Bar) {
	queue := e.pending
	e.pending = nil
	for _, ord := range queue {
		cost := (e.cfg.SpreadPips + e.cfg.SlippagePips) * e.cfg.PipSize
		fill := ord.EntryPrice + float64(ord.Direction.Sign())*cost
		commission := e.cfg.CommissionPerLot * ord.Lots
		e.balance -= commission
		ord.Status = domain.OrderFilled

		pos := &domain.Position{
			ID:         ord.ID,
			Symbol:     ord.Symbol,
			Direction:  ord.Direction,
			Lots:       ord.Lots,
			EntryPrice: fill,
			EntryTime:  bar.Time,
			StopLoss:   ord.StopLoss,
			TakeProfit: ord.TakeProfit,
			Commission: commission,
			Extreme:    fill,
		}
		e.positions = append(e.positions, pos)
		if e.tracker != nil {
			e.tracker.Add(pos)
		}
		e.logger.Debug(ctx, "order filled", map[string]interface{}{
			"position_id": pos.ID,
			"direction":   pos.Direction,
			"fill_price":  fill,
			"lots":        pos.Lots,
		})
	}
}

// close realizes a position into a trade. The recorded profit is net of
// the commission charged at fill, so the final balance always equals the
// initial balance plus the sum of trade profits.
func (e *Engine) close(pos *domain.Position, price float64, t time.Time, reason domain.ExitReason) {
	gross := e.pips(pos, price) * e.cfg.PipValuePerLot * pos.Lots
	e.balance += gross

	e.trades = append(e.trades, &domain.Trade{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		Lots:       pos.Lots,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		EntryTime:  pos.EntryTime,
		ExitTime:   t,
		Profit:     gross - pos.Commission,
		BarsHeld:   pos.BarsHeld,
		ExitReason: reason,
	})

	for i, p := range e.positions {
		if p.ID == pos.ID {
			e.positions = append(e.positions[:i], e.positions[i+1:]...)
			break
		}
	}
	if e.tracker != nil {
		e.tracker.Remove(pos.ID)
	}
}

// pips returns the signed favorable move of a position at the given price.
func (e *Engine) pips(pos *domain.Position, price float64) float64 {
	return float64(pos.Direction.Sign()) * (price - pos.EntryPrice) / e.cfg.PipSize
}

func (e *Engine) unrealized(price float64) float64 {
	var total float64
	for _, pos := range e.positions {
		total += e.pips(pos, price) * e.cfg.PipValuePerLot * pos.Lots
	}
	return total
}

func (e *Engine) findPosition(id string) *domain.Position {
	for _, pos := range e.positions {
		if pos.ID == id {
			return pos
		}
	}
	return nil
}

// Buy queues a market buy order to be filled on the next processed bar.
// Zero stop or target levels mean "none".
func (e *Engine) Buy(ctx context.Context, lots, stopLoss, takeProfit float64) (*domain.Order, error) {
	return e.submit(ctx, domain.Buy, lots, stopLoss, takeProfit)
}

// Sell queues a market sell order to be filled on the next processed bar.
func (e *Engine) Sell(ctx context.Context, lots, stopLoss, takeProfit float64) (*domain.Order, error) {
	return e.submit(ctx, domain.Sell, lots, stopLoss, takeProfit)
}

func (e *Engine) submit(ctx context.Context, dir domain.Direction, lots, stopLoss, takeProfit float64) (*domain.Order, error) {
	if lots <= 0 {
		return nil, fmt.Errorf("%w: lot size must be positive, got %.2f", ports.ErrOrderRejected, lots)
	}
	exposure := len(e.positions) + len(e.pending)
	if !e.cfg.PyramidingAllowed && exposure > 0 {
		e.logger.Warn(ctx, "order rejected: pyramiding disabled with open exposure", map[string]interface{}{
			"direction": dir, "open": len(e.positions), "pending": len(e.pending),
		})
		return nil, fmt.Errorf("%w: pyramiding disabled and a position is already open", ports.ErrOrderRejected)
	}
	if exposure >= e.cfg.MaxConcurrentPositions {
		e.logger.Warn(ctx, "order rejected: max concurrent positions reached", map[string]interface{}{
			"direction": dir, "limit": e.cfg.MaxConcurrentPositions,
		})
		return nil, fmt.Errorf("%w: max concurrent positions (%d) reached", ports.ErrOrderRejected, e.cfg.MaxConcurrentPositions)
	}

	bar := e.bars[e.barIndex]
	ord := &domain.Order{
		ID:          uuid.NewString(),
		Symbol:      bar.Symbol,
		Direction:   dir,
		Lots:        lots,
		EntryPrice:  bar.Close,
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
		Status:      domain.OrderPending,
		CreatedTime: bar.Time,
	}
	e.pending = append(e.pending, ord)
	return ord, nil
}

// ClosePosition closes an open position at the current bar's close.
func (e *Engine) ClosePosition(ctx context.Context, positionID string, reason domain.ExitReason) error {
	pos := e.findPosition(positionID)
	if pos == nil {
		return fmt.Errorf("%w: %s", ports.ErrPositionNotFound, positionID)
	}
	bar := e.bars[e.barIndex]
	e.close(pos, bar.Close, bar.Time, reason)
	return nil
}

// CloseAll closes every open position at the current bar's close.
func (e *Engine) CloseAll(ctx context.Context, reason domain.ExitReason) {
	for len(e.positions) > 0 {
		bar := e.bars[e.barIndex]
		e.close(e.positions[0], bar.Close, bar.Time, reason)
	}
}

// CurrentPrice returns the close of the bar being processed.
func (e *Engine) CurrentPrice() float64 { return e.bars[e.barIndex].Close }

// CurrentBar returns the bar being processed.
func (e *Engine) CurrentBar() domain.Bar { return e.bars[e.barIndex] }

// BarIndex returns the zero-based index of the bar being processed.
func (e *Engine) BarIndex() int { return e.barIndex }

// Bars returns the bars visible so far, up to and including the current one.
func (e *Engine) Bars() []domain.Bar { return e.bars[:e.barIndex+1] }

// Positions returns the open positions in opening order.
func (e *Engine) Positions() []*domain.Position {
	out := make([]*domain.Position, len(e.positions))
	copy(out, e.positions)
	return out
}

// Balance returns the realized account balance.
func (e *Engine) Balance() float64 { return e.balance }

// Equity returns the realized balance plus unrealized profit at the
// current bar's close.
func (e *Engine) Equity() float64 { return e.balance + e.unrealized(e.CurrentPrice()) }

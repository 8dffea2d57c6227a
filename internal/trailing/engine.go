package trailing

import (
	"context"
	"fmt"

	"fxengine/internal/domain"
	"fxengine/internal/ports"
)

// Config holds configuration for adaptive stop management.
type Config struct {
	Enabled             bool                // Gates the trailing stage
	Type                domain.TrailingType // How the trail distance is computed
	ActivationPips      float64             // Profit in pips before trailing starts
	TrailPips           float64             // Trail distance for fixed_pips
	ATRMultiplier       float64             // Trail distance multiplier for atr_based
	TrailPercent        float64             // Trail distance as percent of price for percentage
	BreakevenEnabled    bool                // Gates the breakeven stage
	BreakevenPips       float64             // Profit in pips before the stop moves to breakeven
	BreakevenOffsetPips float64             // Offset beyond entry for the breakeven stop
	PipSize             float64             // Price increment of one pip (0 -> domain.DefaultPipSize)
}

// fallbackTrailPips is used when an ATR-based trail has no ATR available.
const fallbackTrailPips = 15.0

// PositionState is the per-position bookkeeping the engine operates on.
// Once BreakevenHit is set it is never reset, and Extreme never regresses.
type PositionState struct {
	PositionID   string
	Direction    domain.Direction
	EntryPrice   float64
	CurrentSL    *float64 // nil until a stop has been placed
	Extreme      float64  // Favorable-price extreme (highest for BUY, lowest for SELL)
	BreakevenHit bool
}

// Engine advances a stop-loss as price moves favorably: an optional breakeven
// stage first, then trailing once the activation threshold is reached.
// Construct one engine per run or tracked account; it holds no per-position
// state itself.
type Engine struct {
	config Config
	logger ports.Logger
}

// NewEngine creates a new trailing-stop engine.
func NewEngine(config Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if config.Enabled {
		switch config.Type {
		case domain.TrailingFixedPips:
			if config.TrailPips <= 0 {
				return nil, fmt.Errorf("trail pips must be positive, got %f", config.TrailPips)
			}
		case domain.TrailingATRBased:
			if config.ATRMultiplier <= 0 {
				return nil, fmt.Errorf("ATR multiplier must be positive, got %f", config.ATRMultiplier)
			}
		case domain.TrailingPercentage:
			if config.TrailPercent <= 0 {
				return nil, fmt.Errorf("trail percent must be positive, got %f", config.TrailPercent)
			}
		default:
			return nil, fmt.Errorf("unknown trailing type: %q", config.Type)
		}
		if config.ActivationPips < 0 {
			return nil, fmt.Errorf("activation pips cannot be negative, got %f", config.ActivationPips)
		}
	}
	if config.BreakevenEnabled && config.BreakevenPips <= 0 {
		return nil, fmt.Errorf("breakeven pips must be positive, got %f", config.BreakevenPips)
	}
	if config.PipSize <= 0 {
		config.PipSize = domain.DefaultPipSize
	}
	return &Engine{config: config, logger: logger}, nil
}

// Process runs both stages against the current price and mutates state in
// place. It returns the new stop-loss if one was set (nil otherwise) and
// whether the breakeven stage moved the stop in this call. Processing the
// same price twice is idempotent: the second call returns nil because
// neither stage can improve the stop further.
func (e *Engine) Process(ctx context.Context, state *PositionState, price, atr float64) (*float64, bool) {
	if state == nil || price <= 0 {
		return nil, false
	}
	profitPips := (price - state.EntryPrice) * state.Direction.Sign() / e.config.PipSize

	// Breakeven stage runs first and, when it moves the stop, wins the update.
	if e.config.BreakevenEnabled && !state.BreakevenHit && profitPips >= e.config.BreakevenPips {
		state.BreakevenHit = true
		candidate := state.EntryPrice + state.Direction.Sign()*e.config.BreakevenOffsetPips*e.config.PipSize
		if e.improves(state, candidate) {
			state.CurrentSL = &candidate
			e.logger.Debug(ctx, "breakeven stop set",
				map[string]interface{}{"position_id": state.PositionID, "stop_loss": candidate, "profit_pips": profitPips})
			return &candidate, true
		}
	}

	if !e.config.Enabled || profitPips < e.config.ActivationPips {
		return nil, false
	}

	// Track the favorable extreme before deriving the candidate stop.
	if state.Extreme == 0 {
		state.Extreme = state.EntryPrice
	}
	if state.Direction == domain.Buy {
		if price > state.Extreme {
			state.Extreme = price
		}
	} else if price < state.Extreme {
		state.Extreme = price
	}

	distance := e.trailDistance(ctx, state, price, atr)
	candidate := state.Extreme - state.Direction.Sign()*distance

	// The trailed stop must both tighten the current stop and stay strictly
	// on the profit side of the entry.
	if !e.improves(state, candidate) {
		return nil, false
	}
	if state.Direction == domain.Buy && candidate <= state.EntryPrice {
		return nil, false
	}
	if state.Direction == domain.Sell && candidate >= state.EntryPrice {
		return nil, false
	}
	state.CurrentSL = &candidate
	e.logger.Debug(ctx, "trailing stop advanced",
		map[string]interface{}{"position_id": state.PositionID, "stop_loss": candidate, "extreme": state.Extreme})
	return &candidate, false
}

// ShouldClose reports whether the current price has crossed the stop against
// the position's direction.
func (e *Engine) ShouldClose(state *PositionState, price float64) bool {
	if state == nil || state.CurrentSL == nil {
		return false
	}
	if state.Direction == domain.Buy {
		return price <= *state.CurrentSL
	}
	return price >= *state.CurrentSL
}

func (e *Engine) trailDistance(ctx context.Context, state *PositionState, price, atr float64) float64 {
	switch e.config.Type {
	case domain.TrailingATRBased:
		if atr <= 0 {
			e.logger.Warn(ctx, "ATR unavailable for trailing stop, using fixed fallback distance",
				map[string]interface{}{"position_id": state.PositionID, "fallback_pips": fallbackTrailPips})
			return fallbackTrailPips * e.config.PipSize
		}
		return atr * e.config.ATRMultiplier
	case domain.TrailingPercentage:
		return price * e.config.TrailPercent / 100
	default: // fixed_pips
		return e.config.TrailPips * e.config.PipSize
	}
}

// improves reports whether candidate tightens the current stop.
func (e *Engine) improves(state *PositionState, candidate float64) bool {
	if state.CurrentSL == nil {
		return true
	}
	if state.Direction == domain.Buy {
		return candidate > *state.CurrentSL
	}
	return candidate < *state.CurrentSL
}

package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"fxengine/internal/domain"
	"fxengine/internal/ports"
)

// Config holds configuration for risk management.
type Config struct {
	StopLossType    domain.StopLossType   // How the stop-loss distance is computed
	StopLossValue   float64               // Pips, ATR multiplier or percent depending on type
	TakeProfitType  domain.TakeProfitType // How the take-profit distance is computed
	TakeProfitValue float64               // Pips, R:R multiple or ATR multiplier depending on type
	RiskPerTrade    float64               // Percent of balance risked per trade (e.g. 1.0 for 1%)
	MinLot          float64               // Smallest allowed position size
	MaxLot          float64               // Largest allowed position size
	PipSize         float64               // Price increment of one pip (0 -> domain.DefaultPipSize)
}

// Fallback distances used when a required input is missing. Callers always
// get a usable number; the substitution is logged as a warning.
const (
	fallbackStopLossPips   = 50.0
	fallbackTakeProfitPips = 100.0
)

// Manager computes stop-loss, take-profit and position-size numbers. All
// methods are pure aside from logging and never return an error: missing
// inputs resolve to documented fallbacks.
type Manager struct {
	config Config
	logger ports.Logger
}

// NewManager creates a new risk manager instance.
func NewManager(config Config, logger ports.Logger) (*Manager, error) {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if config.StopLossValue <= 0 {
		return nil, fmt.Errorf("stop loss value must be positive, got %f", config.StopLossValue)
	}
	if config.TakeProfitValue <= 0 {
		return nil, fmt.Errorf("take profit value must be positive, got %f", config.TakeProfitValue)
	}
	if config.RiskPerTrade <= 0 || config.RiskPerTrade >= 100 {
		return nil, fmt.Errorf("risk per trade must be in (0, 100), got %f", config.RiskPerTrade)
	}
	if config.MinLot <= 0 {
		return nil, fmt.Errorf("min lot must be positive, got %f", config.MinLot)
	}
	if config.MaxLot < config.MinLot {
		return nil, fmt.Errorf("max lot %f is below min lot %f", config.MaxLot, config.MinLot)
	}
	if config.PipSize <= 0 {
		config.PipSize = domain.DefaultPipSize
	}
	return &Manager{config: config, logger: logger}, nil
}

// PipSize returns the configured pip increment.
func (m *Manager) PipSize() float64 {
	return m.config.PipSize
}

// StopLoss computes the stop-loss price for an entry. The distance is placed
// below the entry for BUY and above for SELL. A zero or negative ATR with an
// ATR-based config falls back to a fixed 50-pip distance.
func (m *Manager) StopLoss(ctx context.Context, entry float64, direction domain.Direction, atr float64) float64 {
	var distance float64
	switch m.config.StopLossType {
	case domain.StopLossATRBased:
		if atr <= 0 {
			m.logger.Warn(ctx, "ATR unavailable for stop loss, using fixed fallback distance",
				map[string]interface{}{"fallback_pips": fallbackStopLossPips, "entry": entry})
			distance = fallbackStopLossPips * m.config.PipSize
		} else {
			distance = atr * m.config.StopLossValue
		}
	case domain.StopLossPercentage:
		distance = entry * m.config.StopLossValue / 100
	default: // fixed_pips
		distance = m.config.StopLossValue * m.config.PipSize
	}
	return entry - direction.Sign()*distance
}

// TakeProfit computes the take-profit price for an entry. risk_reward derives
// the distance from the stop-loss distance times the configured multiple and
// falls back to a fixed 100-pip distance when no stop-loss is available;
// fixed_pips and atr_based mirror the stop-loss formulas.
func (m *Manager) TakeProfit(ctx context.Context, entry float64, direction domain.Direction, stopLoss, atr float64) float64 {
	var distance float64
	switch m.config.TakeProfitType {
	case domain.TakeProfitRiskReward:
		if stopLoss <= 0 {
			m.logger.Warn(ctx, "stop loss unavailable for risk:reward take profit, using fixed fallback distance",
				map[string]interface{}{"fallback_pips": fallbackTakeProfitPips, "entry": entry})
			distance = fallbackTakeProfitPips * m.config.PipSize
		} else {
			distance = math.Abs(entry-stopLoss) * m.config.TakeProfitValue
		}
	case domain.TakeProfitATRBased:
		if atr <= 0 {
			m.logger.Warn(ctx, "ATR unavailable for take profit, using fixed fallback distance",
				map[string]interface{}{"fallback_pips": fallbackStopLossPips, "entry": entry})
			distance = fallbackStopLossPips * m.config.PipSize
		} else {
			distance = atr * m.config.TakeProfitValue
		}
	default: // fixed_pips
		distance = m.config.TakeProfitValue * m.config.PipSize
	}
	return entry + direction.Sign()*distance
}

// PositionSize computes the lot size that risks the configured percentage of
// balance between entry and stop-loss, clamped to [MinLot, MaxLot] and
// rounded to 2 decimals. A zero stop-loss distance returns MinLot.
func (m *Manager) PositionSize(ctx context.Context, balance, entry, stopLoss, pipValue float64) float64 {
	slDistancePips := math.Abs(entry-stopLoss) / m.config.PipSize
	if slDistancePips == 0 || pipValue <= 0 {
		m.logger.Warn(ctx, "degenerate stop loss distance, sizing at minimum lot",
			map[string]interface{}{"entry": entry, "stop_loss": stopLoss, "pip_value": pipValue})
		return m.config.MinLot
	}
	riskAmount := balance * m.config.RiskPerTrade / 100
	lot := riskAmount / (slDistancePips * pipValue)
	if lot < m.config.MinLot {
		lot = m.config.MinLot
	}
	if lot > m.config.MaxLot {
		lot = m.config.MaxLot
	}
	rounded, _ := decimal.NewFromFloat(lot).Round(2).Float64()
	if rounded < m.config.MinLot {
		// Rounding must not undercut the broker minimum.
		rounded = m.config.MinLot
	}
	return rounded
}

// Validate checks SL/TP placement relative to the entry and returns a list
// of violation strings. It never fails: an empty slice means the levels are
// coherent.
func (m *Manager) Validate(entry float64, direction domain.Direction, stopLoss, takeProfit float64) []string {
	var violations []string
	if entry <= 0 {
		violations = append(violations, fmt.Sprintf("entry price must be positive, got %.5f", entry))
	}
	if stopLoss != 0 {
		if stopLoss < 0 {
			violations = append(violations, fmt.Sprintf("stop loss must be positive, got %.5f", stopLoss))
		} else if direction == domain.Buy && stopLoss >= entry {
			violations = append(violations, fmt.Sprintf("stop loss %.5f must be below entry %.5f for BUY", stopLoss, entry))
		} else if direction == domain.Sell && stopLoss <= entry {
			violations = append(violations, fmt.Sprintf("stop loss %.5f must be above entry %.5f for SELL", stopLoss, entry))
		}
	}
	if takeProfit != 0 {
		if takeProfit < 0 {
			violations = append(violations, fmt.Sprintf("take profit must be positive, got %.5f", takeProfit))
		} else if direction == domain.Buy && takeProfit <= entry {
			violations = append(violations, fmt.Sprintf("take profit %.5f must be above entry %.5f for BUY", takeProfit, entry))
		} else if direction == domain.Sell && takeProfit >= entry {
			violations = append(violations, fmt.Sprintf("take profit %.5f must be below entry %.5f for SELL", takeProfit, entry))
		}
	}
	return violations
}

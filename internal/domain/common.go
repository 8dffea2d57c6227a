package domain

import "fmt"

// Direction represents the direction of an order or position (BUY or SELL).
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL, used to fold direction-aware
// price arithmetic into a single expression.
func (d Direction) Sign() float64 {
	if d == Sell {
		return -1
	}
	return 1
}

// Opposite returns the opposing direction.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// ParseDirection converts a string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Buy, Sell:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction: %q", s)
	}
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitReasonStopLoss       ExitReason = "stop_loss"
	ExitReasonTakeProfit     ExitReason = "take_profit"
	ExitReasonSignal         ExitReason = "signal"
	ExitReasonEndOfBacktest  ExitReason = "end_of_backtest"
	ExitReasonMaxHoldingTime ExitReason = "max_holding_time"
)

// StopLossType selects how a stop-loss distance is computed.
type StopLossType string

const (
	StopLossFixedPips  StopLossType = "fixed_pips"
	StopLossATRBased   StopLossType = "atr_based"
	StopLossPercentage StopLossType = "percentage"
)

// ParseStopLossType converts a string to a StopLossType.
func ParseStopLossType(s string) (StopLossType, error) {
	switch StopLossType(s) {
	case StopLossFixedPips, StopLossATRBased, StopLossPercentage:
		return StopLossType(s), nil
	default:
		return "", fmt.Errorf("unknown stop loss type: %q", s)
	}
}

// TakeProfitType selects how a take-profit distance is computed.
type TakeProfitType string

const (
	TakeProfitFixedPips  TakeProfitType = "fixed_pips"
	TakeProfitRiskReward TakeProfitType = "risk_reward"
	TakeProfitATRBased   TakeProfitType = "atr_based"
)

// ParseTakeProfitType converts a string to a TakeProfitType.
func ParseTakeProfitType(s string) (TakeProfitType, error) {
	switch TakeProfitType(s) {
	case TakeProfitFixedPips, TakeProfitRiskReward, TakeProfitATRBased:
		return TakeProfitType(s), nil
	default:
		return "", fmt.Errorf("unknown take profit type: %q", s)
	}
}

// TrailingType selects how a trailing-stop distance is computed.
type TrailingType string

const (
	TrailingFixedPips  TrailingType = "fixed_pips"
	TrailingATRBased   TrailingType = "atr_based"
	TrailingPercentage TrailingType = "percentage"
)

// ParseTrailingType converts a string to a TrailingType.
func ParseTrailingType(s string) (TrailingType, error) {
	switch TrailingType(s) {
	case TrailingFixedPips, TrailingATRBased, TrailingPercentage:
		return TrailingType(s), nil
	default:
		return "", fmt.Errorf("unknown trailing type: %q", s)
	}
}

// RuleAction is the action a trading rule authorizes when its condition holds.
type RuleAction string

const (
	ActionBuy   RuleAction = "BUY"
	ActionSell  RuleAction = "SELL"
	ActionClose RuleAction = "CLOSE"
)

// ParseRuleAction converts a string to a RuleAction.
func ParseRuleAction(s string) (RuleAction, error) {
	switch RuleAction(s) {
	case ActionBuy, ActionSell, ActionClose:
		return RuleAction(s), nil
	default:
		return "", fmt.Errorf("unknown rule action: %q", s)
	}
}

// DefaultPipSize is the conventional pip increment for a 4-decimal FX pair.
// Instruments with other conventions (JPY pairs, metals, indices) override it
// in their configs.
const DefaultPipSize = 0.0001

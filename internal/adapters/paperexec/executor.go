// Package paperexec provides an OrderExecutor that records commands instead
// of transmitting them. It is the default executor for dry runs: the decision
// core behaves exactly as it would live, while every order stays on paper.
package paperexec

import (
	"context"
	"sync"
	"time"

	"fxengine/internal/domain"
	"fxengine/internal/ports"
)

// Command is one journaled executor call.
type Command struct {
	Time       time.Time
	Kind       string // "submit", "modify_sl", "close"
	Order      *domain.Order
	PositionID string
	StopLoss   float64
	Reason     domain.ExitReason
}

// Executor implements ports.OrderExecutor by journaling commands in memory.
type Executor struct {
	logger ports.Logger

	mu      sync.Mutex
	journal []Command
}

// New returns a paper executor. A nil logger disables logging.
func New(logger ports.Logger) *Executor {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Executor{logger: logger}
}

func (e *Executor) SubmitOrder(ctx context.Context, order domain.Order) error {
	e.record(Command{Time: time.Now(), Kind: "submit", Order: &order})
	e.logger.Info(ctx, "Paper order submitted", map[string]interface{}{
		"orderID":   order.ID,
		"symbol":    order.Symbol,
		"direction": string(order.Direction),
		"lots":      order.Lots,
		"entry":     order.EntryPrice,
		"stopLoss":  order.StopLoss,
		"takeProfit": order.TakeProfit,
	})
	return nil
}

func (e *Executor) ModifyStopLoss(ctx context.Context, positionID string, newStopLoss float64) error {
	e.record(Command{Time: time.Now(), Kind: "modify_sl", PositionID: positionID, StopLoss: newStopLoss})
	e.logger.Info(ctx, "Paper stop-loss modified", map[string]interface{}{
		"positionID":  positionID,
		"newStopLoss": newStopLoss,
	})
	return nil
}

func (e *Executor) ClosePosition(ctx context.Context, positionID string, reason domain.ExitReason) error {
	e.record(Command{Time: time.Now(), Kind: "close", PositionID: positionID, Reason: reason})
	e.logger.Info(ctx, "Paper position closed", map[string]interface{}{
		"positionID": positionID,
		"reason":     string(reason),
	})
	return nil
}

// Journal returns a copy of all recorded commands.
func (e *Executor) Journal() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Command, len(e.journal))
	copy(out, e.journal)
	return out
}

func (e *Executor) record(c Command) {
	e.mu.Lock()
	e.journal = append(e.journal, c)
	e.mu.Unlock()
}

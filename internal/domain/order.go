package domain

import "time"

// Order represents a request to open a position. Orders are created by
// strategy logic, sit pending for one bar, and are filled (or cancelled) by
// whichever component owns the replay loop. A filled order is never mutated
// again.
type Order struct {
	ID          string      // Unique identifier
	Symbol      string      // Trading symbol
	Direction   Direction   // BUY or SELL
	Lots        float64     // Requested size in lots
	EntryPrice  float64     // Requested entry price (pre spread/slippage)
	StopLoss    float64     // Optional stop-loss price (0 if unset)
	TakeProfit  float64     // Optional take-profit price (0 if unset)
	Status      OrderStatus // pending, filled or cancelled
	CreatedTime time.Time   // When the strategy issued the order
}

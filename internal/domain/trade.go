package domain

import "time"

// Trade is the immutable record of a closed position.
type Trade struct {
	PositionID string     // Identifier of the position this trade closed
	Symbol     string     // Trading symbol
	Direction  Direction  // BUY or SELL
	Lots       float64    // Size in lots
	EntryPrice float64    // Fill price at entry
	ExitPrice  float64    // Price at close
	EntryTime  time.Time  // Timestamp of the fill
	ExitTime   time.Time  // Timestamp of the close
	Profit     float64    // Net profit including commission
	BarsHeld   int        // Bars the position was held
	ExitReason ExitReason // Why the position was closed
}

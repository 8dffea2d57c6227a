package domain

import "time"

// Position represents an open trade. A position is exclusively owned by
// whichever component currently manages it (the backtest simulator during
// replay, a live tracker otherwise) and must only be mutated through that
// owner's entry points.
type Position struct {
	ID         string    // Unique identifier (inherited from the opening order)
	Symbol     string    // Trading symbol
	Direction  Direction // BUY or SELL
	Lots       float64   // Position size in lots
	EntryPrice float64   // Fill price after spread/slippage
	EntryTime  time.Time // Timestamp of the fill
	StopLoss   float64   // Current stop-loss price (0 if unset)
	TakeProfit float64   // Take-profit price (0 if unset)
	BarsHeld   int       // Number of completed bars since the fill
	Commission float64   // Commission debited at fill, folded into the trade profit on close

	// Extreme is the running favorable-price extreme: highest price seen for
	// BUY, lowest for SELL. It is monotonic for the life of the position.
	Extreme float64
}

// UpdateExtreme folds a new price into the favorable extreme. The extreme
// never regresses.
func (p *Position) UpdateExtreme(price float64) {
	if p.Extreme == 0 {
		p.Extreme = p.EntryPrice
	}
	if p.Direction == Buy {
		if price > p.Extreme {
			p.Extreme = price
		}
		return
	}
	if price < p.Extreme {
		p.Extreme = price
	}
}

// UnrealizedPips returns the direction-aware open profit in pips.
func (p *Position) UnrealizedPips(price, pipSize float64) float64 {
	if pipSize <= 0 {
		pipSize = DefaultPipSize
	}
	return (price - p.EntryPrice) * p.Direction.Sign() / pipSize
}

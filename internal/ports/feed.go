package ports

import (
	"context"
	"time"

	"fxengine/internal/domain"
)

// MarketFeed supplies price bars to the decision core. Implementations wrap
// an exchange REST/WebSocket client; the core only requires that bars arrive
// in strictly increasing time order.
type MarketFeed interface {
	// GetBars retrieves up to limit historical bars for the symbol/interval.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error)

	// GetBarsRange retrieves all bars between start and end.
	GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error)
}

package ports

import (
	"context"

	"fxengine/internal/domain"
)

// OrderExecutor is the outbound channel to whatever actually executes
// commands against a broker terminal. The decision core produces fully
// resolved numbers; transport, retries and authentication live behind this
// interface.
type OrderExecutor interface {
	// SubmitOrder transmits a new order.
	SubmitOrder(ctx context.Context, order domain.Order) error

	// ModifyStopLoss moves the stop-loss of an open position.
	ModifyStopLoss(ctx context.Context, positionID string, newStopLoss float64) error

	// ClosePosition requests a market close of an open position.
	ClosePosition(ctx context.Context, positionID string, reason domain.ExitReason) error
}

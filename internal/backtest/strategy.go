package backtest

import "context"

// Strategy is the plug-in point for trading logic. OnBar is invoked once
// per bar, after exits and fills have been processed, and may place orders
// or close positions through the engine's accessors.
type Strategy interface {
	OnBar(ctx context.Context, e *Engine) error
}

// Initializer is optionally implemented by strategies that need setup
// before the first bar.
type Initializer interface {
	Initialize(ctx context.Context, e *Engine) error
}

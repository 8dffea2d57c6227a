package trailing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/domain"
)

func breakevenOnlyConfig() Config {
	return Config{
		Enabled:             false,
		BreakevenEnabled:    true,
		BreakevenPips:       15,
		BreakevenOffsetPips: 2,
	}
}

func trailingConfig() Config {
	return Config{
		Enabled:        true,
		Type:           domain.TrailingFixedPips,
		ActivationPips: 20,
		TrailPips:      10,
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "disabled engine needs no trailing params", config: Config{}},
		{name: "valid fixed pips", config: trailingConfig()},
		{name: "fixed pips without distance", config: Config{Enabled: true, Type: domain.TrailingFixedPips}, wantErr: true},
		{name: "atr based without multiplier", config: Config{Enabled: true, Type: domain.TrailingATRBased}, wantErr: true},
		{name: "unknown type", config: Config{Enabled: true, Type: "bogus"}, wantErr: true},
		{name: "breakeven without trigger", config: Config{BreakevenEnabled: true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.config, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBreakevenStage(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(breakevenOnlyConfig(), nil)
	require.NoError(t, err)

	state := &PositionState{
		PositionID: "p1",
		Direction:  domain.Buy,
		EntryPrice: 1.0850,
		Extreme:    1.0850,
	}

	// 20 pips in profit: stop moves to entry + 2 pip offset.
	newSL, breakeven := engine.Process(ctx, state, 1.0870, 0)
	require.NotNil(t, newSL)
	assert.InDelta(t, 1.0852, *newSL, 1e-9)
	assert.True(t, breakeven)
	assert.True(t, state.BreakevenHit)

	// Same price again: nothing to improve, no second trigger.
	newSL, breakeven = engine.Process(ctx, state, 1.0870, 0)
	assert.Nil(t, newSL)
	assert.False(t, breakeven)
	assert.True(t, state.BreakevenHit, "breakeven flag is permanent")
}

func TestBreakevenDoesNotLoosenExistingStop(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(breakevenOnlyConfig(), nil)
	require.NoError(t, err)

	existing := 1.0860 // already above the would-be breakeven stop
	state := &PositionState{
		PositionID: "p1",
		Direction:  domain.Buy,
		EntryPrice: 1.0850,
		CurrentSL:  &existing,
		Extreme:    1.0850,
	}
	newSL, breakeven := engine.Process(ctx, state, 1.0870, 0)
	assert.Nil(t, newSL)
	assert.False(t, breakeven)
	assert.True(t, state.BreakevenHit, "stage still consumes its trigger")
	assert.InDelta(t, existing, *state.CurrentSL, 1e-9)
}

func TestTrailingStage(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(trailingConfig(), nil)
	require.NoError(t, err)

	state := &PositionState{
		PositionID: "p1",
		Direction:  domain.Buy,
		EntryPrice: 1.1000,
		Extreme:    1.1000,
	}

	// Below activation: nothing happens.
	newSL, _ := engine.Process(ctx, state, 1.1010, 0)
	assert.Nil(t, newSL)

	// 30 pips up: trail at extreme - 10 pips.
	newSL, _ = engine.Process(ctx, state, 1.1030, 0)
	require.NotNil(t, newSL)
	assert.InDelta(t, 1.1020, *newSL, 1e-9)
	assert.InDelta(t, 1.1030, state.Extreme, 1e-9)

	// Price retreats: extreme and stop hold.
	newSL, _ = engine.Process(ctx, state, 1.1025, 0)
	assert.Nil(t, newSL)
	assert.InDelta(t, 1.1030, state.Extreme, 1e-9)
	assert.InDelta(t, 1.1020, *state.CurrentSL, 1e-9)

	// New high: stop advances.
	newSL, _ = engine.Process(ctx, state, 1.1050, 0)
	require.NotNil(t, newSL)
	assert.InDelta(t, 1.1040, *newSL, 1e-9)

	// Idempotence: unchanged price never tightens twice.
	newSL, _ = engine.Process(ctx, state, 1.1050, 0)
	assert.Nil(t, newSL)
}

func TestTrailingStaysOnProfitSide(t *testing.T) {
	ctx := context.Background()
	cfg := trailingConfig()
	cfg.ActivationPips = 5
	cfg.TrailPips = 30 // wider than the activation profit
	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	state := &PositionState{
		PositionID: "p1",
		Direction:  domain.Buy,
		EntryPrice: 1.1000,
		Extreme:    1.1000,
	}
	// 10 pips profit but candidate stop would sit 20 pips below entry.
	newSL, _ := engine.Process(ctx, state, 1.1010, 0)
	assert.Nil(t, newSL)
}

func TestTrailingSellDirection(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(trailingConfig(), nil)
	require.NoError(t, err)

	state := &PositionState{
		PositionID: "p1",
		Direction:  domain.Sell,
		EntryPrice: 1.1000,
		Extreme:    1.1000,
	}
	newSL, _ := engine.Process(ctx, state, 1.0970, 0)
	require.NotNil(t, newSL)
	assert.InDelta(t, 1.0980, *newSL, 1e-9)
	assert.InDelta(t, 1.0970, state.Extreme, 1e-9)

	// Extreme is monotonic downward for SELL.
	engine.Process(ctx, state, 1.0990, 0)
	assert.InDelta(t, 1.0970, state.Extreme, 1e-9)
}

func TestTrailingATRFallback(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Enabled:        true,
		Type:           domain.TrailingATRBased,
		ActivationPips: 10,
		ATRMultiplier:  2.0,
	}
	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	state := &PositionState{
		PositionID: "p1",
		Direction:  domain.Buy,
		EntryPrice: 1.1000,
		Extreme:    1.1000,
	}
	// With ATR: trail distance = 2 * 0.0005 = 10 pips.
	newSL, _ := engine.Process(ctx, state, 1.1030, 0.0005)
	require.NotNil(t, newSL)
	assert.InDelta(t, 1.1020, *newSL, 1e-9)

	// Without ATR: 15-pip fallback from the new extreme.
	newSL, _ = engine.Process(ctx, state, 1.1050, 0)
	require.NotNil(t, newSL)
	assert.InDelta(t, 1.1035, *newSL, 1e-9)
}

func TestShouldClose(t *testing.T) {
	engine, err := NewEngine(trailingConfig(), nil)
	require.NoError(t, err)

	sl := 1.1020
	buy := &PositionState{Direction: domain.Buy, EntryPrice: 1.1000, CurrentSL: &sl}
	assert.False(t, engine.ShouldClose(buy, 1.1030))
	assert.True(t, engine.ShouldClose(buy, 1.1020))
	assert.True(t, engine.ShouldClose(buy, 1.1010))

	sell := &PositionState{Direction: domain.Sell, EntryPrice: 1.1000, CurrentSL: &sl}
	assert.False(t, engine.ShouldClose(sell, 1.1010))
	assert.True(t, engine.ShouldClose(sell, 1.1025))

	noStop := &PositionState{Direction: domain.Buy, EntryPrice: 1.1000}
	assert.False(t, engine.ShouldClose(noStop, 0.5))
}

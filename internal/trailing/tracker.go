package trailing

import (
	"context"
	"fmt"

	"fxengine/internal/domain"
)

// Update describes what changed for one tracked position during a price
// update. Positions with no change are not reported.
type Update struct {
	PositionID         string
	NewStopLoss        *float64 // Set when the stop moved
	BreakevenTriggered bool     // The breakeven stage moved the stop
	ShouldClose        bool     // Price has crossed the current stop
}

// Tracker aggregates PositionState entries keyed by position id and applies
// the engine to all of them on each price update. A tracker exclusively owns
// the states it holds; callers must feed prices in non-decreasing time order.
type Tracker struct {
	engine *Engine
	states map[string]*PositionState
	order  []string // insertion order, for deterministic iteration
}

// NewTracker creates an empty tracker bound to an engine.
func NewTracker(engine *Engine) (*Tracker, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	return &Tracker{
		engine: engine,
		states: make(map[string]*PositionState),
	}, nil
}

// Add registers a position for stop management. An existing entry with the
// same id is left untouched so replayed adds cannot reset breakeven state.
func (t *Tracker) Add(pos *domain.Position) {
	if pos == nil || pos.ID == "" {
		return
	}
	if _, ok := t.states[pos.ID]; ok {
		return
	}
	state := &PositionState{
		PositionID: pos.ID,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		Extreme:    pos.EntryPrice,
	}
	if pos.StopLoss > 0 {
		sl := pos.StopLoss
		state.CurrentSL = &sl
	}
	t.states[pos.ID] = state
	t.order = append(t.order, pos.ID)
}

// Remove drops a position from tracking.
func (t *Tracker) Remove(positionID string) {
	if _, ok := t.states[positionID]; !ok {
		return
	}
	delete(t.states, positionID)
	for i, id := range t.order {
		if id == positionID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Get returns the state for a position id.
func (t *Tracker) Get(positionID string) (*PositionState, bool) {
	state, ok := t.states[positionID]
	return state, ok
}

// Len returns the number of tracked positions.
func (t *Tracker) Len() int {
	return len(t.states)
}

// UpdatePrice runs the engine over every tracked position and returns the
// positions whose stop changed or whose stop was crossed, in insertion order.
func (t *Tracker) UpdatePrice(ctx context.Context, price, atr float64) []Update {
	var updates []Update
	for _, id := range t.order {
		state := t.states[id]
		newSL, breakeven := t.engine.Process(ctx, state, price, atr)
		shouldClose := t.engine.ShouldClose(state, price)
		if newSL == nil && !shouldClose {
			continue
		}
		updates = append(updates, Update{
			PositionID:         id,
			NewStopLoss:        newSL,
			BreakevenTriggered: breakeven,
			ShouldClose:        shouldClose,
		})
	}
	return updates
}

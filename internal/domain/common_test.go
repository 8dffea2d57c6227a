package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionSignAndOpposite(t *testing.T) {
	assert.Equal(t, 1.0, Buy.Sign())
	assert.Equal(t, -1.0, Sell.Sign())
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestParsers(t *testing.T) {
	dir, err := ParseDirection("BUY")
	require.NoError(t, err)
	assert.Equal(t, Buy, dir)
	_, err = ParseDirection("LONG")
	require.Error(t, err)

	sl, err := ParseStopLossType("atr_based")
	require.NoError(t, err)
	assert.Equal(t, StopLossATRBased, sl)
	_, err = ParseStopLossType("fixed")
	require.Error(t, err)

	tp, err := ParseTakeProfitType("risk_reward")
	require.NoError(t, err)
	assert.Equal(t, TakeProfitRiskReward, tp)
	_, err = ParseTakeProfitType("rr")
	require.Error(t, err)

	tr, err := ParseTrailingType("percentage")
	require.NoError(t, err)
	assert.Equal(t, TrailingPercentage, tr)
	_, err = ParseTrailingType("")
	require.Error(t, err)

	act, err := ParseRuleAction("CLOSE")
	require.NoError(t, err)
	assert.Equal(t, ActionClose, act)
	_, err = ParseRuleAction("close")
	require.Error(t, err)
}

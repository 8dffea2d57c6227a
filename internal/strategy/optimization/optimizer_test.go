package optimization

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/backtest"
	"fxengine/internal/domain"
	"fxengine/internal/indicators"
	"fxengine/internal/risk"
	"fxengine/internal/strategy"
)

func trendingBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 1.1000 + float64(i)*0.0001
		if i%2 == 0 {
			c += 0.0004
		} else {
			c -= 0.0004
		}
		bars[i] = domain.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Symbol: "EURUSD",
			Open:   c,
			High:   c + 0.0002,
			Low:    c - 0.0002,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func baseOptimizerConfig() Config {
	return Config{
		Ranges: []ParameterRange{
			{Name: ParamStopLossValue, Min: 30, Max: 50, Step: 20},
		},
		Risk: risk.Config{
			StopLossType:    domain.StopLossFixedPips,
			StopLossValue:   50,
			TakeProfitType:  domain.TakeProfitFixedPips,
			TakeProfitValue: 100,
			RiskPerTrade:    1.0,
			MinLot:          0.01,
			MaxLot:          5.0,
		},
		Strategy: strategy.Config{
			Rules: []domain.Rule{
				{ID: "long-momentum", Condition: "RSI >= 0", Action: domain.ActionBuy},
			},
			WarmupBars:     20,
			PipValuePerLot: 10,
			Indicators:     indicators.Config{RSIPeriod: 14, ATRPeriod: 14},
		},
		Backtest: backtest.Config{
			InitialBalance:         10000,
			PipValuePerLot:         10,
			MaxConcurrentPositions: 1,
		},
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	cfg := baseOptimizerConfig()
	cfg.Ranges[0].Step = 0
	_, err = New(cfg, nil)
	assert.Error(t, err)

	cfg = baseOptimizerConfig()
	cfg.Ranges[0].Min = 100
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestCombinationGrid(t *testing.T) {
	cfg := baseOptimizerConfig()
	cfg.Ranges = []ParameterRange{
		{Name: ParamStopLossValue, Min: 30, Max: 50, Step: 10},
		{Name: ParamMaxHoldingBars, Min: 2, Max: 4, Step: 2, IsInt: true},
	}
	o, err := New(cfg, nil)
	require.NoError(t, err)

	combos := o.combinations()
	assert.Len(t, combos, 6)
	for _, combo := range combos {
		assert.Contains(t, combo, ParamStopLossValue)
		assert.Contains(t, combo, ParamMaxHoldingBars)
	}
}

func TestRunRanksResultsByScore(t *testing.T) {
	o, err := New(baseOptimizerConfig(), nil)
	require.NoError(t, err)

	results, err := o.Run(context.Background(), trendingBars(60))
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, res := range results {
		require.NotNil(t, res.Metrics)
		require.NotNil(t, res.Backtest)
		assert.Contains(t, res.Parameters, ParamStopLossValue)
		assert.Len(t, res.Backtest.EquityCurve, 61)
	}
}

func TestRunAppliesParameters(t *testing.T) {
	cfg := baseOptimizerConfig()
	cfg.Ranges = []ParameterRange{
		{Name: ParamMaxHoldingBars, Min: 3, Max: 3, Step: 1, IsInt: true},
	}
	o, err := New(cfg, nil)
	require.NoError(t, err)

	results, err := o.Run(context.Background(), trendingBars(60))
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The swept holding limit must show up in the simulated trades.
	var sawHoldingExit bool
	for _, tr := range results[0].Backtest.Trades {
		if tr.ExitReason == domain.ExitReasonMaxHoldingTime {
			sawHoldingExit = true
		}
	}
	assert.True(t, sawHoldingExit)
}

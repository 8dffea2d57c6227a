package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/domain"
)

func tradeWithProfit(profit float64) *domain.Trade {
	return &domain.Trade{
		Symbol:    "EURUSD",
		Direction: domain.Buy,
		Lots:      1.0,
		EntryTime: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExitTime:  time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC),
		Profit:    profit,
	}
}

func TestCalculateEmptyTrades(t *testing.T) {
	m := Calculate(nil, []float64{10000, 10000})

	assert.Zero(t, m.NetProfit)
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.SharpeRatio)
	assert.False(t, math.IsNaN(m.WinRate))
}

func TestCalculateBasicMetrics(t *testing.T) {
	trades := []*domain.Trade{
		tradeWithProfit(200),
		tradeWithProfit(-100),
		tradeWithProfit(100),
		tradeWithProfit(-50),
	}
	m := Calculate(trades, []float64{10000, 10200, 10100, 10200, 10150})

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.InDelta(t, 150.0, m.NetProfit, 1e-9)
	// gross profit 300 against gross loss 150
	assert.InDelta(t, 2.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 150.0, m.AverageWin, 1e-9)
	assert.InDelta(t, -75.0, m.AverageLoss, 1e-9)
	assert.InDelta(t, 37.5, m.Expectancy, 1e-9)
}

func TestProfitFactorNoLosses(t *testing.T) {
	trades := []*domain.Trade{tradeWithProfit(300), tradeWithProfit(100)}
	m := Calculate(trades, []float64{10000, 10300, 10400})

	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.False(t, math.IsInf(m.ProfitFactor, 1))
	assert.False(t, math.IsNaN(m.ProfitFactor))
}

func TestBreakevenTradeCountsAsLoss(t *testing.T) {
	m := Calculate([]*domain.Trade{tradeWithProfit(0)}, []float64{10000, 10000})

	assert.Equal(t, 1, m.LosingTrades)
	assert.Zero(t, m.WinningTrades)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.AverageLoss)
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 11000, trough 9900: 1100 absolute, 10% of the peak.
	equity := []float64{10000, 11000, 10500, 9900, 10800}
	m := Calculate([]*domain.Trade{tradeWithProfit(800)}, equity)

	assert.InDelta(t, 1100.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 10.0, m.MaxDrawdownPct, 1e-9)
}

func TestMaxDrawdownMonotonicEquity(t *testing.T) {
	m := Calculate([]*domain.Trade{tradeWithProfit(500)}, []float64{10000, 10100, 10300, 10500})

	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.MaxDrawdownPct)
	assert.Zero(t, m.CalmarRatio)
}

func TestConsecutiveRuns(t *testing.T) {
	trades := []*domain.Trade{
		tradeWithProfit(10),
		tradeWithProfit(10),
		tradeWithProfit(10),
		tradeWithProfit(-10),
		tradeWithProfit(-10),
		tradeWithProfit(10),
	}
	m := Calculate(trades, []float64{10000, 10030, 10010, 10020})

	assert.Equal(t, 3, m.MaxConsecutiveWins)
	assert.Equal(t, 2, m.MaxConsecutiveLosses)
}

func TestRatiosNeverNaN(t *testing.T) {
	cases := []struct {
		name   string
		trades []*domain.Trade
		equity []float64
	}{
		{name: "flat equity", trades: []*domain.Trade{tradeWithProfit(0)}, equity: []float64{10000, 10000, 10000}},
		{name: "single point", trades: []*domain.Trade{tradeWithProfit(5)}, equity: []float64{10000}},
		{name: "no equity", trades: []*domain.Trade{tradeWithProfit(5)}, equity: nil},
		{name: "zero start", trades: []*domain.Trade{tradeWithProfit(5)}, equity: []float64{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Calculate(tc.trades, tc.equity)
			require.NotNil(t, m)
			for name, v := range map[string]float64{
				"sharpe": m.SharpeRatio, "sortino": m.SortinoRatio, "calmar": m.CalmarRatio,
				"profit_factor": m.ProfitFactor, "drawdown_pct": m.MaxDrawdownPct,
			} {
				assert.False(t, math.IsNaN(v), "%s is NaN", name)
				assert.False(t, math.IsInf(v, 0), "%s is Inf", name)
			}
		})
	}
}

func TestSharpePositiveForSteadyGains(t *testing.T) {
	// Mostly rising equity with one small dip.
	equity := []float64{10000, 10100, 10210, 10190, 10320, 10440}
	m := Calculate([]*domain.Trade{tradeWithProfit(440)}, equity)

	assert.Greater(t, m.SharpeRatio, 0.0)
	assert.Greater(t, m.SortinoRatio, 0.0)
	assert.Greater(t, m.CalmarRatio, 0.0)
}

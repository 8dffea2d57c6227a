package analytics

import (
	"math"

	"fxengine/internal/domain"
)

// Metrics holds summary statistics for a backtest run.
type Metrics struct {
	NetProfit     float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // percent
	ProfitFactor  float64 // 0 when there are no losses
	AverageWin    float64
	AverageLoss   float64 // negative or zero

	MaxDrawdown    float64 // absolute, account currency
	MaxDrawdownPct float64 // percent of the peak

	SharpeRatio  float64
	SortinoRatio float64
	CalmarRatio  float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	Expectancy           float64 // mean profit per trade
}

// Calculate aggregates a trade list and equity curve into summary
// statistics. Every metric is 0 on an empty trade list, and degenerate
// ratios (no losses, flat equity, zero drawdown) resolve to 0 rather than
// NaN or infinity.
func Calculate(trades []*domain.Trade, equityCurve []float64) *Metrics {
	m := &Metrics{}
	if len(trades) == 0 {
		return m
	}

	var grossProfit, grossLoss float64
	var consecWins, consecLosses int
	for _, trade := range trades {
		m.TotalTrades++
		m.NetProfit += trade.Profit
		if trade.Profit > 0 {
			m.WinningTrades++
			grossProfit += trade.Profit
			consecWins++
			consecLosses = 0
		} else {
			m.LosingTrades++
			grossLoss += -trade.Profit
			consecLosses++
			consecWins = 0
		}
		if consecWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = consecWins
		}
		if consecLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = consecLosses
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.Expectancy = m.NetProfit / float64(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}

	m.MaxDrawdown, m.MaxDrawdownPct = maxDrawdown(equityCurve)

	returns := periodReturns(equityCurve)
	m.SharpeRatio = sharpe(returns)
	m.SortinoRatio = sortino(returns)
	if m.MaxDrawdownPct > 0 && len(equityCurve) > 0 && equityCurve[0] > 0 {
		totalReturnPct := m.NetProfit / equityCurve[0] * 100
		m.CalmarRatio = totalReturnPct / m.MaxDrawdownPct
	}

	return m
}

// maxDrawdown returns the largest peak-to-trough drop in the equity curve,
// both absolute and as a percent of the peak.
func maxDrawdown(equity []float64) (abs, pct float64) {
	if len(equity) == 0 {
		return 0, 0
	}
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := peak - v
		if dd > abs {
			abs = dd
			if peak > 0 {
				pct = dd / peak * 100
			}
		}
	}
	return abs, pct
}

// periodReturns converts an equity curve into per-bar fractional returns.
func periodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := meanOf(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}

func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := meanOf(returns)
	var downside float64
	var n int
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	downDev := math.Sqrt(downside / float64(n))
	if downDev == 0 {
		return 0
	}
	return mean / downDev
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

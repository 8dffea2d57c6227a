package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"fxengine/internal/domain"
)

// ATR computes the latest Average True Range value for the bar window.
// Returns 0 when there is not enough history — callers treat a zero ATR as
// "unavailable" and fall back per their own rules.
func ATR(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) <= period {
		return 0
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	series := talib.Atr(highs, lows, closes, period)
	if len(series) == 0 {
		return 0
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

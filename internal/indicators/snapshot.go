package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"fxengine/internal/domain"
)

// Config lists the indicator columns computed into a snapshot.
type Config struct {
	RSIPeriod  int   // e.g. 14
	EMAPeriods []int // e.g. [21, 50, 200]
	SMAPeriods []int // e.g. [20, 50]
	ATRPeriod  int   // e.g. 14
	ADXPeriod  int   // e.g. 14
	MACD       bool  // Include MACD(12,26,9) columns
}

// DefaultConfig returns the column set used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		EMAPeriods: []int{21, 50, 200},
		SMAPeriods: []int{20, 50},
		ATRPeriod:  14,
		ADXPeriod:  14,
		MACD:       true,
	}
}

// BuildSnapshot computes the latest-row indicator snapshot from a bar
// window. Column names follow the NAME / NAME_period convention the rule
// engine resolves against (RSI, EMA_21, ATR, MACD, ...). Columns whose
// period exceeds the available history are simply omitted; the rule engine
// treats missing columns as unsatisfied comparisons. In live operation the
// snapshot normally comes from the feature pipeline — this builder serves
// backtests and standalone use.
func BuildSnapshot(bars []domain.Bar, cfg Config) (map[string]float64, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to compute indicators from")
	}
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}
	last := bars[len(bars)-1]

	snap := map[string]float64{
		"OPEN":   last.Open,
		"HIGH":   last.High,
		"LOW":    last.Low,
		"CLOSE":  last.Close,
		"VOLUME": last.Volume,
		"PRICE":  last.Close,
	}

	put := func(key string, series []float64) {
		if len(series) == 0 {
			return
		}
		v := series[len(series)-1]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		snap[key] = v
	}

	if cfg.RSIPeriod > 0 && len(closes) > cfg.RSIPeriod {
		rsi := talib.Rsi(closes, cfg.RSIPeriod)
		put("RSI", rsi)
		put(fmt.Sprintf("RSI_%d", cfg.RSIPeriod), rsi)
	}
	for _, p := range cfg.EMAPeriods {
		if p > 0 && len(closes) >= p {
			put(fmt.Sprintf("EMA_%d", p), talib.Ema(closes, p))
		}
	}
	for _, p := range cfg.SMAPeriods {
		if p > 0 && len(closes) >= p {
			put(fmt.Sprintf("SMA_%d", p), talib.Sma(closes, p))
		}
	}
	if cfg.ATRPeriod > 0 && len(bars) > cfg.ATRPeriod {
		atr := talib.Atr(highs, lows, closes, cfg.ATRPeriod)
		put("ATR", atr)
		put(fmt.Sprintf("ATR_%d", cfg.ATRPeriod), atr)
	}
	if cfg.ADXPeriod > 0 && len(bars) > 2*cfg.ADXPeriod {
		put("ADX", talib.Adx(highs, lows, closes, cfg.ADXPeriod))
	}
	if cfg.MACD && len(closes) > 35 {
		macd, signal, hist := talib.Macd(closes, 12, 26, 9)
		put("MACD", macd)
		put("MACD_SIGNAL", signal)
		put("MACD_HIST", hist)
	}
	return snap, nil
}

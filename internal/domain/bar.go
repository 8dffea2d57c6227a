package domain

import "time"

// Bar represents a single price bar (candlestick).
type Bar struct {
	Time   time.Time // Start time of the interval
	Symbol string    // Trading symbol
	Open   float64   // Opening price
	High   float64   // Highest price
	Low    float64   // Lowest price
	Close  float64   // Closing price
	Volume float64   // Traded volume
}

// SortedByTime reports whether the bars form a strictly increasing time
// sequence. Replay components require this ordering; see Simulator.Run.
func SortedByTime(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return false
		}
	}
	return true
}

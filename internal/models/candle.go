package models

import "time"

// Timeframe identifies a candle aggregation bucket ("1m", "5m", "1d").
type Timeframe string

const (
	Timeframe1m Timeframe = "1m"
	Timeframe5m Timeframe = "5m"
	Timeframe1d Timeframe = "1d"
)

// Milliseconds returns the bucket duration in milliseconds.
func (tf Timeframe) Milliseconds() int64 {
	switch tf {
	case Timeframe1m:
		return 60_000
	case Timeframe5m:
		return 300_000
	case Timeframe1d:
		return 86_400_000
	default:
		return 60_000
	}
}

// Duration returns the bucket duration.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Milliseconds()) * time.Millisecond
}

// Candle is an OHLCV aggregate over one timeframe bucket. Timestamps are
// epoch milliseconds. A closed candle is immutable; only the strategy
// controller extends an in-progress candle from streaming ticks.
type Candle struct {
	OpenTime    int64   `json:"open_time" db:"open_time"`
	CloseTime   int64   `json:"close_time" db:"close_time"`
	Open        float64 `json:"open" db:"open"`
	High        float64 `json:"high" db:"high"`
	Low         float64 `json:"low" db:"low"`
	Close       float64 `json:"close" db:"close"`
	Volume      float64 `json:"volume" db:"volume"`
	QuoteVolume float64 `json:"quote_volume" db:"quote_volume"`
}

// ClosePrices extracts the close series from a candle window.
func ClosePrices(candles []Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// Tail returns the most recent n candles (the whole slice if it is
// shorter). The result aliases the input; callers must not mutate it.
func Tail(candles []Candle, n int) []Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// AlignTail right-aligns two windows to their common length, trimming
// the longer window's oldest bars. Series are never interpolated.
func AlignTail(a, b []Candle) ([]Candle, []Candle) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return Tail(a, n), Tail(b, n)
}

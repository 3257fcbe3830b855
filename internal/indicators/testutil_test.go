package indicators

import "github.com/pairscan/pairscan/internal/models"

// candlesFromCloses builds 1m candles with the given close series.
func candlesFromCloses(closes []float64) []models.Candle {
	candles := make([]models.Candle, len(closes))
	for i, close := range closes {
		openTime := int64(i) * 60_000
		open := close
		if i > 0 {
			open = closes[i-1]
		}
		high, low := open, open
		if close > high {
			high = close
		}
		if close < low {
			low = close
		}
		candles[i] = models.Candle{
			OpenTime:  openTime,
			CloseTime: openTime + 59_999,
			Open:      open,
			High:      high + 0.1,
			Low:       low - 0.1,
			Close:     close,
			Volume:    1,
		}
	}
	return candles
}

// lcg is a deterministic pseudo-random source for synthetic series.
type lcg struct{ state uint64 }

// next returns a value in [-0.5, 0.5).
func (r *lcg) next() float64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return float64(r.state>>11)/float64(uint64(1)<<53) - 0.5
}

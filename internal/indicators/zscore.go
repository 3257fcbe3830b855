package indicators

import (
	"math"

	"github.com/pairscan/pairscan/internal/models"
)

// zScore standardizes the last element of the spread series against the
// full-window mean and population standard deviation.
func zScore(spread []float64) (float64, error) {
	if len(spread) < 2 {
		return 0, ErrInsufficientData
	}
	m := mean(spread)
	std := populationStd(spread, m)
	if std == 0 || math.IsNaN(std) {
		return 0, ErrDegenerateSeries
	}
	return (spread[len(spread)-1] - m) / std, nil
}

// ZScoreByPrices computes the z-score of the hedge-ratio price spread
// `A - beta·B` over the aligned windows. Pass beta = 1 for the plain
// price difference.
func ZScoreByPrices(candlesA, candlesB []models.Candle, beta float64) (float64, error) {
	if len(candlesA) == 0 || len(candlesB) == 0 {
		return 0, ErrInsufficientData
	}
	a, b := models.AlignTail(candlesA, candlesB)

	spread := make([]float64, len(a))
	for i := range a {
		spread[i] = a[i].Close - beta*b[i].Close
	}
	return zScore(spread)
}

// ZScoreByReturns computes the z-score of the log-return spread.
func ZScoreByReturns(candlesA, candlesB []models.Candle) (float64, error) {
	if len(candlesA) < 2 || len(candlesB) < 2 {
		return 0, ErrInsufficientData
	}
	a, b := models.AlignTail(candlesA, candlesB)

	returnsA := logReturns(a)
	returnsB := logReturns(b)

	spread := make([]float64, len(returnsA))
	for i := range returnsA {
		spread[i] = returnsA[i] - returnsB[i]
	}
	return zScore(spread)
}

// RollingZScoreByPrices recomputes the price z-score independently per
// window. This is deliberately non-incremental: each window stands on
// its own, trading speed for correctness simplicity.
func RollingZScoreByPrices(candlesA, candlesB []models.Candle, window int, beta float64) []RollingPoint {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < window {
		return nil
	}

	points := make([]RollingPoint, 0, len(a)-window)
	for i := window; i < len(a); i++ {
		value, err := ZScoreByPrices(a[i-window:i+1], b[i-window:i+1], beta)
		if err != nil {
			continue
		}
		points = append(points, RollingPoint{Timestamp: a[i].OpenTime, Value: value})
	}
	return points
}

// RollingZScoreByReturns recomputes the return z-score per window.
func RollingZScoreByReturns(candlesA, candlesB []models.Candle, window int) []RollingPoint {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < window+1 {
		return nil
	}

	points := make([]RollingPoint, 0, len(a)-window)
	for i := window + 1; i < len(a); i++ {
		value, err := ZScoreByReturns(a[i-window-1:i+1], b[i-window-1:i+1])
		if err != nil {
			continue
		}
		points = append(points, RollingPoint{Timestamp: a[i].OpenTime, Value: value})
	}
	return points
}

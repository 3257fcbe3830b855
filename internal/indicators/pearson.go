package indicators

import (
	"math"

	"github.com/pairscan/pairscan/internal/models"
)

// pearson computes the Pearson coefficient over two equal-length series.
// Returns 0 when the denominator is exactly zero (zero variance on
// either side) so that degenerate inputs never propagate NaN.
func pearson(x, y []float64) (float64, error) {
	n := len(x)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}

	num := float64(n)*sumXY - sumX*sumY
	den := math.Sqrt((float64(n)*sumX2 - sumX*sumX) * (float64(n)*sumY2 - sumY*sumY))

	if math.IsNaN(num) || math.IsNaN(den) || den == 0 {
		return 0, nil
	}
	return num / den, nil
}

// CorrelationByPrices is the Pearson correlation of the close-price
// series of two candle windows. Windows of unequal length are
// right-aligned to the shorter one. Requires at least 2 aligned bars.
func CorrelationByPrices(candlesA, candlesB []models.Candle) (float64, error) {
	if len(candlesA) == 0 || len(candlesB) == 0 {
		return 0, ErrInsufficientData
	}
	a, b := models.AlignTail(candlesA, candlesB)
	return pearson(models.ClosePrices(a), models.ClosePrices(b))
}

// CorrelationByReturns is the Pearson correlation of log returns.
// Requires at least 2 aligned bars (1 return).
func CorrelationByReturns(candlesA, candlesB []models.Candle) (float64, error) {
	if len(candlesA) < 2 || len(candlesB) < 2 {
		return 0, ErrInsufficientData
	}
	a, b := models.AlignTail(candlesA, candlesB)
	return pearson(logReturns(a), logReturns(b))
}

// RollingCorrelationByPrices slides a fixed window over the aligned
// close series, recomputing the full correlation per window. Returns an
// empty series when the aligned window is shorter than the window size.
func RollingCorrelationByPrices(candlesA, candlesB []models.Candle, window int) []RollingPoint {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < window {
		return nil
	}

	points := make([]RollingPoint, 0, len(a)-window)
	for i := window; i < len(a); i++ {
		value, err := pearson(models.ClosePrices(a[i-window:i]), models.ClosePrices(b[i-window:i]))
		if err != nil {
			continue
		}
		points = append(points, RollingPoint{Timestamp: a[i].OpenTime, Value: value})
	}
	return points
}

// RollingCorrelationByReturns slides a fixed window over the aligned log
// return series. Each window is computed independently.
func RollingCorrelationByReturns(candlesA, candlesB []models.Candle, window int) []RollingPoint {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < window+1 {
		return nil
	}

	returnsA := logReturns(a)
	returnsB := logReturns(b)

	points := make([]RollingPoint, 0, len(returnsA)-window)
	for i := window; i < len(returnsA); i++ {
		value, err := pearson(returnsA[i-window:i], returnsB[i-window:i])
		if err != nil {
			continue
		}
		// Returns are one shorter than candles, hence i+1.
		points = append(points, RollingPoint{Timestamp: a[i+1].OpenTime, Value: value})
	}
	return points
}

package indicators

import (
	"math"
	"sort"

	"github.com/pairscan/pairscan/internal/models"
)

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStd is the uncorrected standard deviation around m.
func populationStd(values []float64, m float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// olsSlope fits y = α + β·x and returns β. NaN when x has no variance.
func olsSlope(x, y []float64) float64 {
	n := len(x)
	meanX := mean(x)
	meanY := mean(y)

	num, den := 0.0, 0.0
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		num += dx * (y[i] - meanY)
		den += dx * dx
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// linearRegression fits y = intercept + slope·x by least squares.
func linearRegression(x, y []float64) (slope, intercept float64) {
	n := float64(len(x))

	var sumX, sumY, sumXY, sumXX float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}

	slope = (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// logReturns computes ln(c_i / c_{i-1}) over the close series. Bars with
// a non-positive close on either side contribute a zero return.
func logReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		curr := candles[i].Close
		if prev > 0 && curr > 0 {
			returns = append(returns, math.Log(curr/prev))
		} else {
			returns = append(returns, 0)
		}
	}
	return returns
}

// RollingPoint is one value of a rolling indicator series, stamped with
// the open time of the bar it was computed at.
type RollingPoint struct {
	Timestamp int64
	Value     float64
}

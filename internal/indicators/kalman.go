package indicators

import (
	"math"

	"github.com/pairscan/pairscan/internal/models"
)

// inputEpsilon guards the Kalman gain against ill-conditioning when the
// independent return is effectively zero.
const inputEpsilon = 1e-8

// KalmanFilter is a scalar filter estimating a time-varying hedge ratio
// (beta) from noisy return observations under the model
// returnB ≈ beta · returnA. It is the only stateful indicator.
type KalmanFilter struct {
	x float64 // current beta estimate
	p float64 // estimate error covariance
	q float64 // process noise
	r float64 // measurement noise
}

// NewKalmanFilter returns a filter with the conventional initial state:
// beta 1.0, covariance 1.0, process noise 1e-5, measurement noise 1e-3.
func NewKalmanFilter() *KalmanFilter {
	return &KalmanFilter{x: 1.0, p: 1.0, q: 1e-5, r: 1e-3}
}

// Update advances the filter with one observation. measurement is the
// dependent return (asset B), input the independent return (asset A).
// Observations with |input| <= 1e-8 are skipped. Returns the updated
// beta estimate.
func (k *KalmanFilter) Update(measurement, input float64) float64 {
	if math.Abs(input) <= inputEpsilon {
		return k.x
	}

	pPred := k.p + k.q

	innovation := measurement - input*k.x
	s := input*pPred*input + k.r
	gain := pPred * input / s

	k.x += gain * innovation
	k.p = (1 - gain*input) * pPred

	return k.x
}

// State returns the current beta estimate.
func (k *KalmanFilter) State() float64 { return k.x }

// Covariance returns the current estimate error covariance.
func (k *KalmanFilter) Covariance() float64 { return k.p }

// Reset restores the filter to its initial conditions.
func (k *KalmanFilter) Reset() {
	k.x = 1.0
	k.p = 1.0
}

// simpleReturns computes p_i/p_{i-1} - 1 over the close series. A zero
// close anywhere makes the return series undefined.
func simpleReturns(candles []models.Candle) ([]float64, error) {
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			return nil, ErrDegenerateSeries
		}
		returns = append(returns, candles[i].Close/prev-1)
	}
	return returns, nil
}

// AdaptiveBeta runs a fresh Kalman filter over the aligned return
// series of the two windows and returns the final beta estimate.
// Requires at least 2 aligned bars (1 return pair).
func AdaptiveBeta(candlesA, candlesB []models.Candle) (float64, error) {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < 2 {
		return 0, ErrInsufficientData
	}

	returnsA, err := simpleReturns(a)
	if err != nil {
		return 0, err
	}
	returnsB, err := simpleReturns(b)
	if err != nil {
		return 0, err
	}

	filter := NewKalmanFilter()
	beta := filter.State()
	for i := range returnsA {
		beta = filter.Update(returnsB[i], returnsA[i])
	}
	return beta, nil
}

// RollingBeta estimates beta per window with a fresh filter each time.
// No warm-start between windows: every estimate is independent of its
// neighbours.
func RollingBeta(candlesA, candlesB []models.Candle, window int) []RollingPoint {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < window {
		return nil
	}

	points := make([]RollingPoint, 0, len(a)-window)
	for i := window; i < len(a); i++ {
		beta, err := AdaptiveBeta(a[i-window:i], b[i-window:i])
		if err != nil {
			continue
		}
		points = append(points, RollingPoint{Timestamp: a[i].OpenTime, Value: beta})
	}
	return points
}

package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hurstPair builds two price series whose log-space residual is the
// given spread series.
func hurstPair(spread []float64, seed uint64) (pricesA, pricesB []float64) {
	rng := lcg{state: seed}
	n := len(spread)
	pricesA = make([]float64, n)
	pricesB = make([]float64, n)

	logA := 4.6
	for i := 0; i < n; i++ {
		logA += rng.next() * 0.01
		pricesA[i] = math.Exp(logA)
		pricesB[i] = math.Exp(2*logA + spread[i])
	}
	return pricesA, pricesB
}

func TestHurstAntiPersistentSpread(t *testing.T) {
	spread := make([]float64, 200)
	for i := range spread {
		if i%2 == 0 {
			spread[i] = 0.05
		} else {
			spread[i] = -0.05
		}
	}
	pricesA, pricesB := hurstPair(spread, 31)

	h, err := Hurst(pricesA, pricesB, DefaultHurstConfig())
	require.NoError(t, err)
	assert.Less(t, h, 0.4)
}

func TestHurstRandomWalkSpread(t *testing.T) {
	rng := lcg{state: 37}
	spread := make([]float64, 400)
	level := 0.0
	for i := range spread {
		level += rng.next() * 0.02
		spread[i] = level
	}
	pricesA, pricesB := hurstPair(spread, 41)

	h, err := Hurst(pricesA, pricesB, DefaultHurstConfig())
	require.NoError(t, err)
	assert.Greater(t, h, 0.3)
	assert.Less(t, h, 0.8)
}

func TestHurstInsufficientData(t *testing.T) {
	pricesA, pricesB := hurstPair(make([]float64, 15), 3)
	_, err := Hurst(pricesA, pricesB, DefaultHurstConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestHurstPeriodRangeTooNarrow(t *testing.T) {
	// 37 points leave 36 after differencing, so the max period of 9 sits
	// below the default min period of 10.
	spread := make([]float64, 37)
	for i := range spread {
		spread[i] = math.Sin(float64(i))
	}
	pricesA, pricesB := hurstPair(spread, 5)

	_, err := Hurst(pricesA, pricesB, DefaultHurstConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZScoreByPricesKnownSpread(t *testing.T) {
	a := candlesFromCloses([]float64{10, 11, 12, 13, 14})
	b := candlesFromCloses([]float64{9, 9, 9, 9, 9})

	// Spread is [1,2,3,4,5]: mean 3, population std sqrt(2).
	z, err := ZScoreByPrices(a, b, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, z, 1e-9)
}

func TestZScoreByPricesHedgeRatio(t *testing.T) {
	a := candlesFromCloses([]float64{20, 22, 24, 26, 30})
	b := candlesFromCloses([]float64{10, 11, 12, 13, 14})

	// With beta 2 the spread is [0,0,0,0,2]: mean 0.4, std 0.8.
	z, err := ZScoreByPrices(a, b, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, z, 1e-9)
}

func TestZScoreByPricesConstantSpread(t *testing.T) {
	a := candlesFromCloses([]float64{10, 11, 12, 13})
	_, err := ZScoreByPrices(a, a, 1)
	assert.ErrorIs(t, err, ErrDegenerateSeries)
}

func TestZScoreByPricesInsufficientData(t *testing.T) {
	_, err := ZScoreByPrices(nil, nil, 1)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestZScoreByReturnsIdenticalSeries(t *testing.T) {
	a := candlesFromCloses([]float64{100, 102, 99, 104})
	_, err := ZScoreByReturns(a, a)
	assert.ErrorIs(t, err, ErrDegenerateSeries)
}

func TestRollingZScoreByPricesCount(t *testing.T) {
	closes := make([]float64, 25)
	rng := lcg{state: 3}
	for i := range closes {
		closes[i] = 100 + rng.next()
	}
	a := candlesFromCloses(closes)
	b := candlesFromCloses(make([]float64, 25))

	points := RollingZScoreByPrices(a, b, 10, 1)
	require.Len(t, points, 15)
	for _, p := range points {
		assert.False(t, math.IsNaN(p.Value))
	}
}

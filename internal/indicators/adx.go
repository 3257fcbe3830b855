package indicators

import (
	"math"

	"github.com/pairscan/pairscan/internal/models"
)

// TrendStrength classifies ADX magnitude.
type TrendStrength string

const (
	TrendWeak       TrendStrength = "weak"
	TrendModerate   TrendStrength = "moderate"
	TrendStrong     TrendStrength = "strong"
	TrendVeryStrong TrendStrength = "very_strong"
)

// TrendDirection classifies the DI+ / DI- relationship.
type TrendDirection string

const (
	TrendBullish  TrendDirection = "bullish"
	TrendBearish  TrendDirection = "bearish"
	TrendSideways TrendDirection = "sideways"
)

// DirectionalIndex bundles the latest ADX with its directional
// indicators.
type DirectionalIndex struct {
	ADX     float64
	DIPlus  float64
	DIMinus float64
}

// ADX computes Wilder's Average Directional Index over a fixed period.
type ADX struct {
	period int
}

// NewADX returns a calculator with the given smoothing period;
// period <= 0 selects Wilder's classic 14.
func NewADX(period int) *ADX {
	if period <= 0 {
		period = 14
	}
	return &ADX{period: period}
}

// Calculate returns the latest ADX value. Requires at least 2×period
// candles.
func (a *ADX) Calculate(candles []models.Candle) (float64, error) {
	full, err := a.CalculateFull(candles)
	if err != nil {
		return 0, err
	}
	return full.ADX, nil
}

// CalculateFull returns the latest ADX together with DI+ and DI-.
func (a *ADX) CalculateFull(candles []models.Candle) (*DirectionalIndex, error) {
	if len(candles) < a.period*2 {
		return nil, ErrInsufficientData
	}

	trueRanges := trueRanges(candles)
	dmPlus, dmMinus := directionalMovement(candles)

	smoothedTR := wilderSmoothing(trueRanges, a.period)
	smoothedDMPlus := wilderSmoothing(dmPlus, a.period)
	smoothedDMMinus := wilderSmoothing(dmMinus, a.period)

	diPlus := make([]float64, len(smoothedDMPlus))
	diMinus := make([]float64, len(smoothedDMMinus))
	for i := range smoothedDMPlus {
		if smoothedTR[i] != 0 {
			diPlus[i] = smoothedDMPlus[i] / smoothedTR[i] * 100
			diMinus[i] = smoothedDMMinus[i] / smoothedTR[i] * 100
		}
	}

	dx := make([]float64, len(diPlus))
	for i := range diPlus {
		sum := diPlus[i] + diMinus[i]
		if sum != 0 {
			dx[i] = math.Abs(diPlus[i]-diMinus[i]) / sum * 100
		}
	}

	if len(dx) < a.period || len(diPlus) == 0 {
		return nil, ErrInsufficientData
	}

	adxValues := wilderSmoothing(dx, a.period)
	if len(adxValues) == 0 {
		return nil, ErrInsufficientData
	}

	return &DirectionalIndex{
		ADX:     adxValues[len(adxValues)-1],
		DIPlus:  diPlus[len(diPlus)-1],
		DIMinus: diMinus[len(diMinus)-1],
	}, nil
}

// Strength maps an ADX value onto the conventional 20/40/60 bands.
func (a *ADX) Strength(adx float64) TrendStrength {
	switch {
	case adx < 20:
		return TrendWeak
	case adx < 40:
		return TrendModerate
	case adx < 60:
		return TrendStrong
	default:
		return TrendVeryStrong
	}
}

// Direction classifies the trend from DI+ and DI-. A difference under 5
// is treated as sideways movement.
func (a *ADX) Direction(diPlus, diMinus float64) TrendDirection {
	if math.Abs(diPlus-diMinus) < 5 {
		return TrendSideways
	}
	if diPlus > diMinus {
		return TrendBullish
	}
	return TrendBearish
}

func trueRanges(candles []models.Candle) []float64 {
	ranges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		curr, prev := candles[i], candles[i-1]
		tr := curr.High - curr.Low
		if hc := math.Abs(curr.High - prev.Close); hc > tr {
			tr = hc
		}
		if lc := math.Abs(curr.Low - prev.Close); lc > tr {
			tr = lc
		}
		ranges = append(ranges, tr)
	}
	return ranges
}

func directionalMovement(candles []models.Candle) (dmPlus, dmMinus []float64) {
	dmPlus = make([]float64, 0, len(candles)-1)
	dmMinus = make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		curr, prev := candles[i], candles[i-1]
		upMove := curr.High - prev.High
		downMove := prev.Low - curr.Low

		switch {
		case upMove > downMove && upMove > 0:
			dmPlus = append(dmPlus, upMove)
			dmMinus = append(dmMinus, 0)
		case downMove > upMove && downMove > 0:
			dmPlus = append(dmPlus, 0)
			dmMinus = append(dmMinus, downMove)
		default:
			dmPlus = append(dmPlus, 0)
			dmMinus = append(dmMinus, 0)
		}
	}
	return dmPlus, dmMinus
}

// wilderSmoothing seeds with a simple average and continues with
// Wilder's recursive smoothing.
func wilderSmoothing(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}

	smoothed := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	smoothed = append(smoothed, sum/float64(period))

	for i := period; i < len(values); i++ {
		prev := smoothed[len(smoothed)-1]
		smoothed = append(smoothed, (prev*float64(period-1)+values[i])/float64(period))
	}
	return smoothed
}

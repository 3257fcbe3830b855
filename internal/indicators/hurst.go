package indicators

import "math"

// HurstConfig controls the rescaled-range estimation.
type HurstConfig struct {
	MinPeriod         int  // smallest window size, default 10
	MaxPeriod         int  // largest window size, default len(data)/4
	UseLogPrices      bool // take logs before the cointegration regression
	ApplyDifferencing bool // first-difference the residual spread
}

// DefaultHurstConfig mirrors the conventional R/S setup: log prices,
// differenced spread, periods from 10 up to a quarter of the data.
func DefaultHurstConfig() HurstConfig {
	return HurstConfig{MinPeriod: 10, UseLogPrices: true, ApplyDifferencing: true}
}

// Hurst estimates the Hurst exponent of the cointegration-residual
// spread of two price series. H < 0.5 indicates anti-persistent
// (mean-reverting) behavior, H ≈ 0.5 a random walk, H > 0.5 trending.
//
// Requires at least 20 residual points and at least 3 valid
// (period, R/S) pairs for the log-log regression.
func Hurst(pricesA, pricesB []float64, cfg HurstConfig) (float64, error) {
	n := len(pricesA)
	if len(pricesB) < n {
		n = len(pricesB)
	}
	if n == 0 {
		return 0, ErrInsufficientData
	}
	pricesA = pricesA[len(pricesA)-n:]
	pricesB = pricesB[len(pricesB)-n:]

	seriesA := make([]float64, n)
	seriesB := make([]float64, n)
	for i := 0; i < n; i++ {
		if cfg.UseLogPrices {
			seriesA[i] = math.Log(pricesA[i])
			seriesB[i] = math.Log(pricesB[i])
		} else {
			seriesA[i] = pricesA[i]
			seriesB[i] = pricesB[i]
		}
	}

	// Residuals of the cointegration regression B = α + β·A.
	slope, intercept := linearRegression(seriesA, seriesB)
	data := make([]float64, n)
	for i := 0; i < n; i++ {
		data[i] = seriesB[i] - (intercept + slope*seriesA[i])
	}

	if cfg.ApplyDifferencing {
		diffed := make([]float64, len(data)-1)
		for i := 1; i < len(data); i++ {
			diffed[i-1] = data[i] - data[i-1]
		}
		data = diffed
	}

	if len(data) < 20 {
		return 0, ErrInsufficientData
	}

	minPeriod := cfg.MinPeriod
	if minPeriod <= 0 {
		minPeriod = 10
	}
	maxPeriod := cfg.MaxPeriod
	if maxPeriod <= 0 {
		maxPeriod = len(data) / 4
	}
	if minPeriod >= maxPeriod {
		return 0, ErrInsufficientData
	}

	var logPeriods, logRS []float64
	for period := minPeriod; period <= maxPeriod; period++ {
		rs := rescaledRange(data, period)
		if rs > 0 {
			logPeriods = append(logPeriods, math.Log(float64(period)))
			logRS = append(logRS, math.Log(rs))
		}
	}

	if len(logPeriods) < 3 {
		return 0, ErrDegenerateSeries
	}

	slope, _ = linearRegression(logPeriods, logRS)
	return slope, nil
}

// rescaledRange averages R/S across all whole segments of the given
// period length.
func rescaledRange(data []float64, period int) float64 {
	segments := len(data) / period
	if segments < 1 {
		return 0
	}

	total := 0.0
	valid := 0
	for i := 0; i < segments; i++ {
		rs := segmentRS(data[i*period : (i+1)*period])
		if rs > 0 {
			total += rs
			valid++
		}
	}
	if valid == 0 {
		return 0
	}
	return total / float64(valid)
}

// segmentRS computes the range of cumulative deviations over the
// segment's standard deviation.
func segmentRS(segment []float64) float64 {
	if len(segment) < 2 {
		return 0
	}

	m := mean(segment)

	cumSum := 0.0
	maxDev := math.Inf(-1)
	minDev := math.Inf(1)
	for _, v := range segment {
		cumSum += v - m
		if cumSum > maxDev {
			maxDev = cumSum
		}
		if cumSum < minDev {
			minDev = cumSum
		}
	}

	std := populationStd(segment, m)
	if std <= 0 {
		return 0
	}
	return (maxDev - minDev) / std
}

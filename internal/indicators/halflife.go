package indicators

import "math"

// HalfLife estimates the half-life of mean reversion of the log-price
// spread between two assets, in bars of the input series.
//
// The spread is logA − β·logB with β from the OLS regression of logA on
// logB, then an AR(1) fit spread_t = φ·spread_{t-1} gives
// halfLife = ln(2) / −ln(φ). Returns +Inf when φ lies outside (0, 1),
// i.e. no mean reversion is evidenced. Requires at least 3 aligned
// observations.
func HalfLife(pricesA, pricesB []float64) (float64, error) {
	n := len(pricesA)
	if len(pricesB) < n {
		n = len(pricesB)
	}
	if n < 3 {
		return 0, ErrInsufficientData
	}
	pricesA = pricesA[len(pricesA)-n:]
	pricesB = pricesB[len(pricesB)-n:]

	logA := make([]float64, n)
	logB := make([]float64, n)
	for i := 0; i < n; i++ {
		logA[i] = math.Log(pricesA[i])
		logB[i] = math.Log(pricesB[i])
	}

	beta := olsSlope(logB, logA)

	spread := make([]float64, n)
	for i := 0; i < n; i++ {
		spread[i] = logA[i] - beta*logB[i]
	}

	phi := olsSlope(spread[:n-1], spread[1:])
	if math.IsNaN(phi) || phi <= 0 || phi >= 1 {
		return math.Inf(1), nil
	}
	return math.Ln2 / -math.Log(phi), nil
}

package indicators

import (
	"math"
	"sort"

	"github.com/pairscan/pairscan/internal/models"
)

// minCointegrationObservations is the smallest aligned sample the
// Engle-Granger test accepts.
const minCointegrationObservations = 100

// CointegrationResult carries the approximate p-value of the
// Engle-Granger test. pValue <= 0.01 is treated as cointegrated.
type CointegrationResult struct {
	PValue float64
}

// ADFThresholds are the 1%/5%/10% critical values of the Engle-Granger
// distribution (two variables) at one sample size.
type ADFThresholds struct {
	OnePct  float64
	FivePct float64
	TenPct  float64
}

// ADFCriticalValues maps sample size to critical values. The p-value
// mapping interpolates linearly between table rows and between the
// three significance levels, and extrapolates linearly beyond them.
// This is a known approximation carried over from the reference tables,
// not a fitted response surface.
type ADFCriticalValues map[int]ADFThresholds

// DefaultADFCriticalValues is the standard Engle-Granger table for two
// cointegrated variables.
var DefaultADFCriticalValues = ADFCriticalValues{
	100:  {OnePct: -4.07, FivePct: -3.37, TenPct: -3.07},
	200:  {OnePct: -4.00, FivePct: -3.34, TenPct: -3.04},
	500:  {OnePct: -3.96, FivePct: -3.32, TenPct: -3.02},
	1000: {OnePct: -3.93, FivePct: -3.30, TenPct: -3.01},
}

// Cointegration runs the two-step Engle-Granger procedure on the close
// prices of two aligned candle windows: OLS of B on A, then an
// augmented Dickey-Fuller test on the residuals. Requires at least 100
// aligned observations; constant or non-finite series are rejected.
// The p-value is always within [0.01, 0.99].
func Cointegration(candlesA, candlesB []models.Candle) (*CointegrationResult, error) {
	return CointegrationWithTable(candlesA, candlesB, DefaultADFCriticalValues)
}

// CointegrationWithTable is Cointegration with a caller-supplied
// critical-value table.
func CointegrationWithTable(candlesA, candlesB []models.Candle, table ADFCriticalValues) (*CointegrationResult, error) {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < minCointegrationObservations {
		return nil, ErrInsufficientData
	}

	pricesA := models.ClosePrices(a)
	pricesB := models.ClosePrices(b)

	if err := validateSeries(pricesA); err != nil {
		return nil, err
	}
	if err := validateSeries(pricesB); err != nil {
		return nil, err
	}

	// Step 1: cointegrating regression B = α + β·A.
	slope, intercept := linearRegression(pricesA, pricesB)

	residuals := make([]float64, len(pricesB))
	for i := range pricesB {
		residuals[i] = pricesB[i] - (intercept + slope*pricesA[i])
	}

	// Step 2: ADF on the residuals.
	pValue, err := augmentedDickeyFuller(residuals, table)
	if err != nil {
		return nil, err
	}
	return &CointegrationResult{PValue: pValue}, nil
}

// validateSeries rejects non-finite values and constant series.
func validateSeries(data []float64) error {
	if len(data) == 0 {
		return ErrInsufficientData
	}
	first := data[0]
	if math.IsNaN(first) || math.IsInf(first, 0) {
		return ErrDegenerateSeries
	}
	constant := true
	for _, v := range data[1:] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrDegenerateSeries
		}
		if constant && v != first {
			constant = false
		}
	}
	if constant {
		return ErrDegenerateSeries
	}
	return nil
}

// augmentedDickeyFuller regresses Δy_t on a constant, y_{t-1} and
// lags of Δy, with lags = max(1, ⌊n^(1/3)⌋), and maps the t-statistic
// of the lagged-level coefficient to an approximate p-value.
func augmentedDickeyFuller(series []float64, table ADFCriticalValues) (float64, error) {
	n := len(series)
	lags := int(math.Floor(math.Cbrt(float64(n))))
	if lags < 1 {
		lags = 1
	}

	startIndex := lags + 1
	numObs := n - startIndex
	if numObs < 10 {
		return 0, ErrInsufficientData
	}
	numCols := lags + 2 // constant + lagged level + lagged differences

	x := make([][]float64, numObs)
	y := make([]float64, numObs)
	for i := 0; i < numObs; i++ {
		t := startIndex + i
		y[i] = series[t] - series[t-1]

		row := make([]float64, numCols)
		row[0] = 1
		row[1] = series[t-1]
		for lag := 1; lag <= lags; lag++ {
			row[lag+1] = series[t-lag] - series[t-lag-1]
		}
		x[i] = row
	}

	beta, xtxInv, ok := solveNormalEquations(x, y, numCols)
	if !ok {
		// Singular system: report the weakest admissible evidence.
		return 0.99, nil
	}

	// Residual variance and the standard error of the lagged-level
	// coefficient from the (XᵀX)⁻¹ diagonal.
	ssr := 0.0
	for i := 0; i < numObs; i++ {
		pred := 0.0
		for j := 0; j < numCols; j++ {
			pred += x[i][j] * beta[j]
		}
		r := y[i] - pred
		ssr += r * r
	}
	variance := ssr / float64(numObs-numCols)
	se := math.Sqrt(variance * xtxInv[1][1])
	if se == 0 || math.IsNaN(se) {
		return 0.99, nil
	}

	tStat := beta[1] / se
	return adfPValue(tStat, numObs, table), nil
}

// solveNormalEquations computes β = (XᵀX)⁻¹Xᵀy and returns the inverse
// for covariance use. ok is false when XᵀX is singular.
func solveNormalEquations(x [][]float64, y []float64, cols int) (beta []float64, inv [][]float64, ok bool) {
	xtx := make([][]float64, cols)
	xty := make([]float64, cols)
	for i := 0; i < cols; i++ {
		xtx[i] = make([]float64, cols)
	}
	for _, row := range x {
		for i := 0; i < cols; i++ {
			for j := 0; j < cols; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	for k, row := range x {
		for i := 0; i < cols; i++ {
			xty[i] += row[i] * y[k]
		}
	}

	inv, ok = invertMatrix(xtx)
	if !ok {
		return nil, nil, false
	}

	beta = make([]float64, cols)
	for i := 0; i < cols; i++ {
		for j := 0; j < cols; j++ {
			beta[i] += inv[i][j] * xty[j]
		}
	}
	return beta, inv, true
}

// invertMatrix inverts a small square matrix by Gauss-Jordan
// elimination with partial pivoting.
func invertMatrix(m [][]float64) ([][]float64, bool) {
	n := len(m)

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		scale := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= scale
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := 0; i < n; i++ {
		inv[i] = aug[i][n:]
	}
	return inv, true
}

// criticalValuesFor interpolates the table rows to the given sample
// size, clamping outside the table's range.
func criticalValuesFor(sampleSize int, table ADFCriticalValues) ADFThresholds {
	sizes := make([]int, 0, len(table))
	for size := range table {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)

	if sampleSize <= sizes[0] {
		return table[sizes[0]]
	}
	if sampleSize >= sizes[len(sizes)-1] {
		return table[sizes[len(sizes)-1]]
	}

	for i := 0; i < len(sizes)-1; i++ {
		lo, hi := sizes[i], sizes[i+1]
		if sampleSize < lo || sampleSize > hi {
			continue
		}
		if sampleSize == lo {
			return table[lo]
		}
		if sampleSize == hi {
			return table[hi]
		}
		t := float64(sampleSize-lo) / float64(hi-lo)
		lower, upper := table[lo], table[hi]
		return ADFThresholds{
			OnePct:  lower.OnePct + t*(upper.OnePct-lower.OnePct),
			FivePct: lower.FivePct + t*(upper.FivePct-lower.FivePct),
			TenPct:  lower.TenPct + t*(upper.TenPct-lower.TenPct),
		}
	}
	return table[sizes[0]]
}

// adfPValue maps the ADF t-statistic to an approximate p-value by
// linear interpolation between the 1%/5%/10% critical values, with a
// linear tail beyond 10%. Clamped to [0.01, 0.99].
func adfPValue(tStat float64, sampleSize int, table ADFCriticalValues) float64 {
	cv := criticalValuesFor(sampleSize, table)

	switch {
	case tStat < cv.OnePct:
		return 0.01
	case tStat < cv.FivePct:
		t := (tStat - cv.OnePct) / (cv.FivePct - cv.OnePct)
		return 0.01 + t*0.04
	case tStat < cv.TenPct:
		t := (tStat - cv.FivePct) / (cv.TenPct - cv.FivePct)
		return 0.05 + t*0.05
	default:
		return math.Min(0.99, 0.1+(tStat-cv.TenPct)*0.1)
	}
}

package screening

import (
	"math"
	"sort"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/indicators"
	"github.com/pairscan/pairscan/internal/models"
)

// PairData bundles one asset with its prefetched candle windows.
type PairData struct {
	Asset models.Asset
	Short []models.Candle // short-timeframe window (1m)
	Long  []models.Candle // long-timeframe window (5m)
}

// cointegrationFunc matches indicators.Cointegration and is swappable
// for instrumentation.
type cointegrationFunc func(candlesA, candlesB []models.Candle) (*indicators.CointegrationResult, error)

// PairEvaluator runs one pair through the screening cascade. Stages are
// ordered cheapest and most selective first and short-circuit on the
// first failure. Evaluators are stateless and safe for concurrent use.
type PairEvaluator struct {
	cfg          config.ScreeningConfig
	cointegrate  cointegrationFunc
	shortBandMin float64
	shortBandMax float64
}

// NewPairEvaluator creates an evaluator for the given thresholds.
func NewPairEvaluator(cfg config.ScreeningConfig, shortTimeframe models.Timeframe) *PairEvaluator {
	minBars, maxBars := cfg.HalfLifeBandBars(shortTimeframe.Milliseconds())
	return &PairEvaluator{
		cfg:          cfg,
		cointegrate:  indicators.Cointegration,
		shortBandMin: minBars,
		shortBandMax: maxBars,
	}
}

// Evaluate runs the full cascade. It returns (nil, nil) when any stage
// rejects the pair and a non-nil candidate when every stage passes.
// Indicator errors reject the pair rather than failing the run.
func (e *PairEvaluator) Evaluate(a, b PairData) (*models.ScreeningCandidate, error) {
	corrPrices, corrReturns, ok := e.checkCorrelation(a.Short, b.Short)
	if !ok {
		return nil, nil
	}

	beta, err := indicators.AdaptiveBeta(a.Short, b.Short)
	if err != nil || beta == 0 {
		return nil, nil
	}

	if !e.checkSpreadVolatility(a.Short, b.Short, beta) {
		return nil, nil
	}

	crossings := countCrossings(a.Short, b.Short, beta)
	if crossings == 0 {
		return nil, nil
	}

	halfLife, ok := e.checkHalfLife(a.Short, b.Short)
	if !ok {
		return nil, nil
	}

	shortCoint, ok := e.checkCointegration(a.Short, b.Short)
	if !ok {
		return nil, nil
	}
	if _, ok := e.checkCointegration(a.Long, b.Long); !ok {
		return nil, nil
	}

	if !e.checkRollingCorrelation(a.Short, b.Short) {
		return nil, nil
	}

	spread := spreadStats(a.Short, b.Short, beta, e.cfg.SpreadStatsBars)

	candidate := models.ScreeningCandidate{
		AssetA:               a.Asset,
		AssetB:               b.Asset,
		PValue:               shortCoint.PValue,
		HalfLife:             halfLife,
		CorrelationByPrices:  corrPrices,
		CorrelationByReturns: corrReturns,
		Crossings:            crossings,
		Spread:               spread,
	}
	candidate.Score = e.Score(candidate)

	return &candidate, nil
}

func (e *PairEvaluator) checkCorrelation(candlesA, candlesB []models.Candle) (byPrices, byReturns float64, ok bool) {
	windowA := models.Tail(candlesA, e.cfg.CorrelationBars)
	windowB := models.Tail(candlesB, e.cfg.CorrelationBars)

	byPrices, err := indicators.CorrelationByPrices(windowA, windowB)
	if err != nil ||
		byPrices < e.cfg.MinCorrelationByPrices ||
		byPrices > e.cfg.MaxCorrelationByPrices {
		return 0, 0, false
	}

	byReturns, err = indicators.CorrelationByReturns(windowA, windowB)
	if err != nil ||
		byReturns < e.cfg.MinCorrelationByReturns ||
		byReturns > e.cfg.MaxCorrelationByReturns {
		return 0, 0, false
	}
	return byPrices, byReturns, true
}

// checkSpreadVolatility measures the volatility of percentage changes of
// the hedge-ratio spread. A spread that barely moves cannot pay for its
// commissions; one that moves too much trips stop-losses.
func (e *PairEvaluator) checkSpreadVolatility(candlesA, candlesB []models.Candle, beta float64) bool {
	a, b := models.AlignTail(
		models.Tail(candlesA, e.cfg.SpreadVolatilityBars),
		models.Tail(candlesB, e.cfg.SpreadVolatilityBars))
	if len(a) < 2 {
		return false
	}

	spread := make([]float64, len(a))
	for i := range a {
		spread[i] = a[i].Close - beta*b[i].Close
	}

	returns := make([]float64, 0, len(spread)-1)
	for i := 1; i < len(spread); i++ {
		prev := spread[i-1]
		if math.Abs(prev) > 1e-10 {
			returns = append(returns, (spread[i]-prev)/math.Abs(prev)*100)
		}
	}
	if len(returns) < 10 {
		return false
	}

	volatility := sampleStd(returns)
	if !isFinite(volatility) || volatility <= 0 {
		return false
	}
	return volatility >= e.cfg.MinSpreadVolatilityPct && volatility <= e.cfg.MaxSpreadVolatilityPct
}

// countCrossings counts sign changes of the demeaned hedge-ratio spread
// over the full aligned window. Zero crossings means the spread never
// returned to its mean.
func countCrossings(candlesA, candlesB []models.Candle, beta float64) int {
	a, b := models.AlignTail(candlesA, candlesB)
	if len(a) < 2 {
		return 0
	}

	spread := make([]float64, len(a))
	for i := range a {
		spread[i] = a[i].Close - beta*b[i].Close
	}
	spreadMean := meanOf(spread)

	crossings := 0
	for i := 1; i < len(spread); i++ {
		prev := spread[i-1] - spreadMean
		curr := spread[i] - spreadMean
		if prev*curr < 0 {
			crossings++
		}
	}
	return crossings
}

func (e *PairEvaluator) checkHalfLife(candlesA, candlesB []models.Candle) (float64, bool) {
	halfLife, err := indicators.HalfLife(
		models.ClosePrices(models.Tail(candlesA, e.cfg.HalfLifeBars)),
		models.ClosePrices(models.Tail(candlesB, e.cfg.HalfLifeBars)))
	if err != nil {
		return 0, false
	}
	if halfLife < e.shortBandMin || halfLife > e.shortBandMax {
		return 0, false
	}
	return halfLife, true
}

func (e *PairEvaluator) checkCointegration(candlesA, candlesB []models.Candle) (*indicators.CointegrationResult, bool) {
	result, err := e.cointegrate(
		models.Tail(candlesA, e.cfg.CointegrationBars),
		models.Tail(candlesB, e.cfg.CointegrationBars))
	if err != nil || result == nil {
		return nil, false
	}
	if result.PValue > e.cfg.MaxCointegrationPValue {
		return nil, false
	}
	return result, true
}

// checkRollingCorrelation guards against correlation that is high on
// average but unstable across the window.
func (e *PairEvaluator) checkRollingCorrelation(candlesA, candlesB []models.Candle) bool {
	points := indicators.RollingCorrelationByReturns(
		models.Tail(candlesA, e.cfg.RollingCorrBars),
		models.Tail(candlesB, e.cfg.RollingCorrBars),
		e.cfg.RollingCorrWindow)
	if len(points) == 0 {
		return false
	}

	values := make([]float64, len(points))
	overThreshold := 0
	for i, p := range points {
		values[i] = p.Value
		if p.Value > e.cfg.RollingCorrThreshold {
			overThreshold++
		}
	}

	denominator := len(values) - e.cfg.RollingCorrWindow + 1
	if denominator <= 0 {
		return false
	}
	overRatio := float64(overThreshold) / float64(denominator)

	return meanOf(values) > e.cfg.MinRollingCorrMean &&
		overRatio >= e.cfg.MinRollingCorrOverRatio
}

// spreadStats summarizes the hedge-ratio spread over the stats window.
func spreadStats(candlesA, candlesB []models.Candle, beta float64, bars int) models.SpreadStats {
	a, b := models.AlignTail(models.Tail(candlesA, bars), models.Tail(candlesB, bars))

	spread := make([]float64, len(a))
	for i := range a {
		spread[i] = a[i].Close - beta*b[i].Close
	}
	return models.SpreadStats{
		Mean:   meanOf(spread),
		Median: medianOf(spread),
		Std:    sampleStd(spread),
	}
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// sampleStd is the unbiased (n-1) standard deviation.
func sampleStd(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := meanOf(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(n-1))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package screening

import "github.com/pairscan/pairscan/internal/models"

// Scoring weights. A tuned heuristic, not a fitted model; they sum to 1
// and rank cointegration strength above everything else.
const (
	weightPValue               = 0.25
	weightHalfLife             = 0.20
	weightCorrelationByPrices  = 0.20
	weightCorrelationByReturns = 0.15
	weightCrossings            = 0.10
	weightSpreadStd            = 0.10
)

// Score combines six normalized sub-scores into a [0, 100] value
// rounded to two decimals. Band-based sub-scores peak at the band
// midpoint and fall off linearly toward the edges. Exported so stored
// candidates can be rescored after a weight change.
func (e *PairEvaluator) Score(c models.ScreeningCandidate) float64 {
	pValueScore := clamp01((e.cfg.MaxCointegrationPValue - c.PValue) / e.cfg.MaxCointegrationPValue)

	optimalHalfLife := (e.shortBandMin + e.shortBandMax) / 2
	halfLifeRange := e.shortBandMax - e.shortBandMin
	halfLifeScore := clamp01(1 - abs(c.HalfLife-optimalHalfLife)/(halfLifeRange/2))

	corrPricesScore := (c.CorrelationByPrices - e.cfg.MinCorrelationByPrices) /
		(e.cfg.MaxCorrelationByPrices - e.cfg.MinCorrelationByPrices)

	corrReturnsScore := (c.CorrelationByReturns - e.cfg.MinCorrelationByReturns) /
		(e.cfg.MaxCorrelationByReturns - e.cfg.MinCorrelationByReturns)

	optimalCrossings := float64(e.cfg.OptimalCrossings)
	crossingsScore := clamp01(1 - abs(float64(c.Crossings)-optimalCrossings)/optimalCrossings)

	volatilityMid := (e.cfg.MinSpreadVolatilityPct + e.cfg.MaxSpreadVolatilityPct) / 2
	volatilityHalfRange := (e.cfg.MaxSpreadVolatilityPct - e.cfg.MinSpreadVolatilityPct) / 2
	spreadStdScore := clamp01(1 - abs(c.Spread.Std-volatilityMid)/volatilityHalfRange)

	weighted := pValueScore*weightPValue +
		halfLifeScore*weightHalfLife +
		corrPricesScore*weightCorrelationByPrices +
		corrReturnsScore*weightCorrelationByReturns +
		crossingsScore*weightCrossings +
		spreadStdScore*weightSpreadStd

	scaled := weighted * 100
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 100 {
		scaled = 100
	}
	return round2(scaled)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

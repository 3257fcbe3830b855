package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/models"
)

// midpointCandidate sits at the optimum of every band-based sub-score
// under the production defaults.
func midpointCandidate() models.ScreeningCandidate {
	return models.ScreeningCandidate{
		PValue:               0.005,
		HalfLife:             195, // midpoint of the 30..360 bar band
		CorrelationByPrices:  0.995,
		CorrelationByReturns: 0.95,
		Crossings:            50,
		Spread:               models.SpreadStats{Std: 0.525},
	}
}

func TestScoreMidpointCandidate(t *testing.T) {
	evaluator := NewPairEvaluator(config.Default().Screening, models.Timeframe1m)

	// Every sub-score except the p-value is at its maximum; the p-value
	// sits halfway: 0.25*0.5 + 0.75 = 0.875.
	assert.Equal(t, 87.5, evaluator.Score(midpointCandidate()))
}

func TestScorePenalizesCrossingsDistance(t *testing.T) {
	evaluator := NewPairEvaluator(config.Default().Screening, models.Timeframe1m)

	c := midpointCandidate()
	c.Crossings = 150
	// Twice the optimum distance floors the crossings sub-score.
	assert.Equal(t, 77.5, evaluator.Score(c))
}

func TestScoreAtCorrelationFloor(t *testing.T) {
	evaluator := NewPairEvaluator(config.Default().Screening, models.Timeframe1m)

	c := midpointCandidate()
	c.CorrelationByPrices = 0.80
	assert.Equal(t, 67.5, evaluator.Score(c))
}

func TestScoreNeverLeavesRange(t *testing.T) {
	evaluator := NewPairEvaluator(config.Default().Screening, models.Timeframe1m)

	worst := models.ScreeningCandidate{
		PValue:               0.01,
		HalfLife:             10_000,
		CorrelationByPrices:  0.80,
		CorrelationByReturns: 0.30,
		Crossings:            1000,
		Spread:               models.SpreadStats{Std: 50},
	}
	score := evaluator.Score(worst)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)

	best := midpointCandidate()
	best.PValue = 0
	assert.Equal(t, 100.0, evaluator.Score(best))
}

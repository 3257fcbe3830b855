package screening

import (
	"time"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/models"
)

// testScreeningConfig keeps every band wide enough that the synthetic
// cointegrated pair below passes all stages, while staying selective
// enough to reject unrelated series.
func testScreeningConfig() config.ScreeningConfig {
	return config.ScreeningConfig{
		MinDailyQuoteVolume: 1_000_000,
		ReferenceCurrency:   "USDT",

		ShortTimeframeBars: 720,
		LongTimeframeBars:  300,

		CorrelationBars:      720,
		SpreadVolatilityBars: 360,
		RollingCorrBars:      720,
		RollingCorrWindow:    60,
		CointegrationBars:    500,
		HalfLifeBars:         360,
		SpreadStatsBars:      360,

		MinCorrelationByPrices:  0.30,
		MaxCorrelationByPrices:  0.9999,
		MinCorrelationByReturns: 0.01,
		MaxCorrelationByReturns: 0.9999,

		MinSpreadVolatilityPct: 0.0001,
		MaxSpreadVolatilityPct: 1000,

		MinRollingCorrMean:      0.05,
		RollingCorrThreshold:    0.0,
		MinRollingCorrOverRatio: 0.1,

		MaxCointegrationPValue: 0.05,

		MinHalfLifeDuration: time.Minute,
		MaxHalfLifeDuration: 48 * time.Hour,

		OptimalCrossings: 50,
		Workers:          2,
	}
}

type synthRand struct{ state uint64 }

func (r *synthRand) next() float64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return float64(r.state>>11)/float64(uint64(1)<<53) - 0.5
}

func synthCandles(closes []float64, timeframe models.Timeframe) []models.Candle {
	tfMs := timeframe.Milliseconds()
	start := int64(1_700_000_000_000)
	candles := make([]models.Candle, len(closes))
	for i, close := range closes {
		open := close
		if i > 0 {
			open = closes[i-1]
		}
		high, low := open, open
		if close > high {
			high = close
		}
		if close < low {
			low = close
		}
		openTime := start + int64(i)*tfMs
		candles[i] = models.Candle{
			OpenTime:    openTime,
			CloseTime:   openTime + tfMs - 1,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      100,
			QuoteVolume: 10_000,
		}
	}
	return candles
}

// cointegratedCloses builds two close series where B tracks half of A
// plus a stationary AR(1) residual: choppy, correlated and strongly
// cointegrated.
func cointegratedCloses(n int, seed uint64) (closesA, closesB []float64) {
	rng := synthRand{state: seed}
	closesA = make([]float64, n)
	closesB = make([]float64, n)

	residual := 0.0
	for i := 0; i < n; i++ {
		shared := 0.3
		if i%2 == 1 {
			shared = -0.3
		}
		priceA := 100 + shared + rng.next()*0.1
		residual = 0.9*residual + rng.next()*0.1

		closesA[i] = priceA
		closesB[i] = 0.5*priceA + 5 + residual
	}
	return closesA, closesB
}

// uncorrelatedCloses is pure noise around a flat level.
func uncorrelatedCloses(n int, level float64, seed uint64) []float64 {
	rng := synthRand{state: seed}
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = level + rng.next()
	}
	return closes
}

func cointegratedPairData(seedA, seedB uint64) (a, b PairData) {
	shortA, shortB := cointegratedCloses(720, seedA)
	longA, longB := cointegratedCloses(300, seedB)

	a = PairData{
		Asset: models.Asset{Symbol: "AAAUSDT", BaseAsset: "AAA", QuoteAsset: "USDT", Status: "TRADING"},
		Short: synthCandles(shortA, models.Timeframe1m),
		Long:  synthCandles(longA, models.Timeframe5m),
	}
	b = PairData{
		Asset: models.Asset{Symbol: "BBBUSDT", BaseAsset: "BBB", QuoteAsset: "USDT", Status: "TRADING"},
		Short: synthCandles(shortB, models.Timeframe1m),
		Long:  synthCandles(longB, models.Timeframe5m),
	}
	return a, b
}

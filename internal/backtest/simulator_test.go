package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/strategy"
)

const simStart = int64(1_700_000_000_000)

func testBacktestConfig() config.BacktestConfig {
	return config.BacktestConfig{
		BaseQuantity:         1000,
		LossLookback:         time.Hour,
		BlockCooldown:        time.Hour,
		MaxSingleLossPct:     1.0,
		MaxCumulativeLossPct: 0.5,
		ConsecutiveLosses:    3,
	}
}

func testStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		CandleCount:         200,
		BetaBars:            60,
		ZScoreBars:          60,
		ADXBars:             60,
		CorrelationBars:     60,
		EntryZScore:         2.0,
		ExitZScore:          0.0,
		StopLossZScore:      4.0,
		StopLossRatePct:     1.0,
		MinPriceCorrelation: 0.7,
		AnalysisThrottle:    15 * time.Second,
		CommissionRate:      0.001,
	}
}

// pairCloses builds the two legs of a choppy correlated pair. During
// replay each leg ticks once per closed candle, so leg A runs one bar
// ahead of leg B at analysis time; leg B is therefore built one shared
// step ahead, which lines the windows up again. spikes shifts leg A's
// close at the given bar index.
func pairCloses(n int, spikes map[int]float64) (closesA, closesB []float64) {
	closesA = make([]float64, n)
	closesB = make([]float64, n)
	shared := func(i int) float64 {
		if i%2 == 1 {
			return -0.3
		}
		return 0.3
	}
	for i := 0; i < n; i++ {
		drift := []float64{0.05, 0, -0.05}[i%3]
		closesA[i] = 100 + shared(i) + drift + spikes[i]
		closesB[i] = 100 + shared(i+1)
	}
	return closesA, closesB
}

func simCandles(closes []float64) []models.Candle {
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
		openTime := simStart + int64(i)*60_000
		candles[i] = models.Candle{
			OpenTime:  openTime,
			CloseTime: openTime + 59_999,
			Open:      open,
			High:      high + 0.1,
			Low:       low - 0.1,
			Close:     close,
			Volume:    1,
		}
	}
	return candles
}

// memCandleStore is an in-memory CandleStore for replay tests.
type memCandleStore struct {
	series map[string][]models.Candle
}

func (s *memCandleStore) FindCandles(_ context.Context, symbol string, _ models.Timeframe, upTo int64, limit int) ([]models.Candle, error) {
	var matched []models.Candle
	for _, c := range s.series[symbol] {
		if c.OpenTime <= upTo {
			matched = append(matched, c)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *memCandleStore) LatestDailyCandle(context.Context, string, int64) (*models.Candle, error) {
	return nil, nil
}

func (s *memCandleStore) SaveCandles(_ context.Context, symbol string, _ models.Timeframe, candles []models.Candle) error {
	s.series[symbol] = append(s.series[symbol], candles...)
	return nil
}

func testPair(symbolA, symbolB string) Pair {
	return Pair{
		AssetA: models.Asset{Symbol: symbolA, QuoteAsset: "USDT"},
		AssetB: models.Asset{Symbol: symbolB, QuoteAsset: "USDT"},
	}
}

// Replay window: 200 warmup bars, replay bars 201..259.
func replayBounds() (startTime, endTime int64) {
	startTime = simStart + 200*60_000
	endTime = simStart + 260*60_000 - 1
	return startTime, endTime
}

func TestSimulatorSingleRoundTrip(t *testing.T) {
	// One dislocation at bar 229, mean reversion the bar after.
	closesA, closesB := pairCloses(260, map[int]float64{229: 0.13})
	store := &memCandleStore{series: map[string][]models.Candle{
		"AAAUSDT": simCandles(closesA),
		"BBBUSDT": simCandles(closesB),
	}}

	sim := NewSimulator(testBacktestConfig(), testStrategyConfig(), store)
	startTime, endTime := replayBounds()

	trades, err := sim.Run(context.Background(), []Pair{testPair("AAAUSDT", "BBBUSDT")}, startTime, endTime)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, 1, trade.ID)
	assert.Equal(t, models.DirectionSellBuy, trade.Direction)
	assert.Equal(t, "AAAUSDT", trade.SymbolA)
	assert.Equal(t, "BBBUSDT", trade.SymbolB)
	assert.Contains(t, trade.OpenReason, "high z-score")
	assert.Contains(t, trade.CloseReason, "mean reversion")

	assert.Equal(t, simStart+229*60_000+59_999, trade.OpenTime)
	assert.Equal(t, simStart+230*60_000+59_999, trade.CloseTime)

	assert.Equal(t, 1000.0, trade.QuantityA)
	assert.InDelta(t, 1000.0, trade.QuantityB, 60)

	// Open prices come from the candle closes at the open tick.
	assert.InDelta(t, 99.83, trade.OpenPriceA, 1e-9)
	assert.InDelta(t, 99.7, trade.OpenPriceB, 1e-9)

	// Chop plus commission: a small realized loss, far from the stop.
	assert.Less(t, trade.ROI, 0.0)
	assert.Greater(t, trade.ROI, -0.5)
}

func TestSimulatorStopLossBlocksPair(t *testing.T) {
	// Entry at bar 229, then the spread blows out hard against it.
	closesA, closesB := pairCloses(260, map[int]float64{229: 0.13, 230: 3.0})
	store := &memCandleStore{series: map[string][]models.Candle{
		"AAAUSDT": simCandles(closesA),
		"BBBUSDT": simCandles(closesB),
	}}

	sim := NewSimulator(testBacktestConfig(), testStrategyConfig(), store)
	startTime, endTime := replayBounds()

	trades, err := sim.Run(context.Background(), []Pair{testPair("AAAUSDT", "BBBUSDT")}, startTime, endTime)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Contains(t, trade.CloseReason, "stop-loss")
	assert.LessOrEqual(t, trade.ROI, -1.0)
}

func TestSimulatorSequentialTradeIDs(t *testing.T) {
	closesA, closesB := pairCloses(260, map[int]float64{229: 0.18})
	store := &memCandleStore{series: map[string][]models.Candle{
		"AAAUSDT": simCandles(closesA),
		"BBBUSDT": simCandles(closesB),
		"CCCUSDT": simCandles(closesA),
		"DDDUSDT": simCandles(closesB),
	}}

	sim := NewSimulator(testBacktestConfig(), testStrategyConfig(), store)
	startTime, endTime := replayBounds()

	pairs := []Pair{
		testPair("AAAUSDT", "BBBUSDT"),
		testPair("CCCUSDT", "DDDUSDT"),
	}
	trades, err := sim.Run(context.Background(), pairs, startTime, endTime)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, 1, trades[0].ID)
	assert.Equal(t, 2, trades[1].ID)
	assert.Equal(t, "AAAUSDT", trades[0].SymbolA)
	assert.Equal(t, "CCCUSDT", trades[1].SymbolA)
}

func TestSimulatorEmptyReplayRange(t *testing.T) {
	closesA, closesB := pairCloses(200, nil)
	store := &memCandleStore{series: map[string][]models.Candle{
		"AAAUSDT": simCandles(closesA),
		"BBBUSDT": simCandles(closesB),
	}}

	sim := NewSimulator(testBacktestConfig(), testStrategyConfig(), store)
	startTime, endTime := replayBounds()

	// All candles sit before the replay window: the pair is skipped.
	trades, err := sim.Run(context.Background(), []Pair{testPair("AAAUSDT", "BBBUSDT")}, startTime, endTime)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSimulatorNoWarmupCandles(t *testing.T) {
	store := &memCandleStore{series: map[string][]models.Candle{}}
	sim := NewSimulator(testBacktestConfig(), testStrategyConfig(), store)
	startTime, endTime := replayBounds()

	_, err := sim.Run(context.Background(), []Pair{testPair("AAAUSDT", "BBBUSDT")}, startTime, endTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no warmup candles")
}

func TestSimulatorCancellation(t *testing.T) {
	closesA, closesB := pairCloses(260, nil)
	store := &memCandleStore{series: map[string][]models.Candle{
		"AAAUSDT": simCandles(closesA),
		"BBBUSDT": simCandles(closesB),
	}}

	sim := NewSimulator(testBacktestConfig(), testStrategyConfig(), store)
	startTime, endTime := replayBounds()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, []Pair{testPair("AAAUSDT", "BBBUSDT")}, startTime, endTime)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeTicks(t *testing.T) {
	a := []strategy.Tick{
		{Symbol: "A", Timestamp: 1},
		{Symbol: "A", Timestamp: 3},
		{Symbol: "A", Timestamp: 5},
	}
	b := []strategy.Tick{
		{Symbol: "B", Timestamp: 2},
		{Symbol: "B", Timestamp: 3},
		{Symbol: "B", Timestamp: 6},
	}

	merged := mergeTicks(a, b)
	require.Len(t, merged, 6)

	symbols := make([]string, len(merged))
	for i, tick := range merged {
		symbols[i] = tick.Symbol
	}
	// Ties go to the first stream.
	assert.Equal(t, []string{"A", "B", "A", "B", "A", "B"}, symbols)

	timestamps := make([]int64, len(merged))
	for i, tick := range merged {
		timestamps[i] = tick.Timestamp
	}
	assert.Equal(t, []int64{1, 2, 3, 3, 5, 6}, timestamps)
}

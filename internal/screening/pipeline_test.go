package screening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/persistence"
)

// stubCandleStore serves canned candle series keyed by symbol and
// timeframe.
type stubCandleStore struct {
	series map[string]map[models.Timeframe][]models.Candle
}

func (s *stubCandleStore) FindCandles(_ context.Context, symbol string, timeframe models.Timeframe, upTo int64, limit int) ([]models.Candle, error) {
	var matched []models.Candle
	for _, c := range s.series[symbol][timeframe] {
		if c.OpenTime <= upTo {
			matched = append(matched, c)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *stubCandleStore) LatestDailyCandle(_ context.Context, symbol string, upTo int64) (*models.Candle, error) {
	var latest *models.Candle
	for i, c := range s.series[symbol][models.Timeframe1d] {
		if c.OpenTime <= upTo {
			latest = &s.series[symbol][models.Timeframe1d][i]
		}
	}
	if latest == nil {
		return nil, persistence.ErrNotFound
	}
	return latest, nil
}

func (s *stubCandleStore) SaveCandles(_ context.Context, symbol string, timeframe models.Timeframe, candles []models.Candle) error {
	if s.series[symbol] == nil {
		s.series[symbol] = make(map[models.Timeframe][]models.Candle)
	}
	s.series[symbol][timeframe] = append(s.series[symbol][timeframe], candles...)
	return nil
}

type stubAssetStore struct {
	assets []models.Asset
}

func (s *stubAssetStore) ListAssets(context.Context) ([]models.Asset, error) {
	return s.assets, nil
}

func (s *stubAssetStore) UpsertAssets(_ context.Context, assets []models.Asset) error {
	s.assets = assets
	return nil
}

func dailyCandle(day int64, quoteVolume, close float64) []models.Candle {
	return []models.Candle{{
		OpenTime:    day - 86_400_000,
		CloseTime:   day - 1,
		Close:       close,
		QuoteVolume: quoteVolume,
	}}
}

func TestBuildScreeningReportEndToEnd(t *testing.T) {
	date := int64(1_700_100_000_000)
	day := startOfDay(date)

	a, b := cointegratedPairData(101, 103)

	candles := &stubCandleStore{series: map[string]map[models.Timeframe][]models.Candle{
		"AAAUSDT": {
			models.Timeframe1m: a.Short,
			models.Timeframe5m: a.Long,
			models.Timeframe1d: dailyCandle(day, 20_000_000, 100),
		},
		"BBBUSDT": {
			models.Timeframe1m: b.Short,
			models.Timeframe5m: b.Long,
			models.Timeframe1d: dailyCandle(day, 20_000_000, 55),
		},
		// Liquid enough after conversion but with no intraday candles:
		// passes the universe filter, dropped at prefetch.
		"CCCBTC": {
			models.Timeframe1d: dailyCandle(day, 100, 0.002),
		},
		"BTCUSDT": {
			models.Timeframe1d: dailyCandle(day, 500_000_000, 50_000),
		},
		// Too thin to enter the universe at all.
		"LOWUSDT": {
			models.Timeframe1d: dailyCandle(day, 1_000, 1),
		},
	}}

	assets := &stubAssetStore{assets: []models.Asset{
		a.Asset,
		b.Asset,
		{Symbol: "CCCBTC", BaseAsset: "CCC", QuoteAsset: "BTC", Status: "TRADING"},
		{Symbol: "LOWUSDT", BaseAsset: "LOW", QuoteAsset: "USDT", Status: "TRADING"},
		{Symbol: "NODATAUSDT", BaseAsset: "NODATA", QuoteAsset: "USDT", Status: "TRADING"},
	}}

	pipeline := NewPipeline(testScreeningConfig(), candles, assets, NewUniverseCache(nil))

	candidates, err := pipeline.BuildScreeningReport(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	candidate := candidates[0]
	assert.Equal(t, "AAAUSDT", candidate.AssetA.Symbol)
	assert.Equal(t, "BBBUSDT", candidate.AssetB.Symbol)
	assert.LessOrEqual(t, candidate.PValue, 0.05)
	assert.Greater(t, candidate.Score, 0.0)
}

func TestBuildScreeningReportUsesUniverseCache(t *testing.T) {
	date := int64(1_700_100_000_000)
	day := startOfDay(date)

	cache := NewUniverseCache(nil)
	// Pre-seeded empty universe: the asset store must never be needed.
	cache.Put(context.Background(), day, nil)

	pipeline := NewPipeline(testScreeningConfig(),
		&stubCandleStore{series: map[string]map[models.Timeframe][]models.Candle{}},
		&stubAssetStore{},
		cache)

	candidates, err := pipeline.BuildScreeningReport(context.Background(), date)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestBuildScreeningReportCancellation(t *testing.T) {
	date := int64(1_700_100_000_000)
	a, b := cointegratedPairData(101, 103)
	day := startOfDay(date)

	// Enough assets that the feed loop outlives the worker pool's idle
	// capacity and must observe the cancelled context.
	series := make(map[string]map[models.Timeframe][]models.Candle)
	var universe []models.Asset
	for _, symbol := range []string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT", "EEEUSDT", "FFFUSDT", "GGGUSDT", "HHHUSDT"} {
		data := a
		if len(universe)%2 == 1 {
			data = b
		}
		series[symbol] = map[models.Timeframe][]models.Candle{
			models.Timeframe1m: data.Short,
			models.Timeframe5m: data.Long,
			models.Timeframe1d: dailyCandle(day, 20_000_000, 100),
		}
		universe = append(universe, models.Asset{Symbol: symbol, QuoteAsset: "USDT", Status: "TRADING"})
	}
	candles := &stubCandleStore{series: series}
	assets := &stubAssetStore{assets: universe}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := NewPipeline(testScreeningConfig(), candles, assets, NewUniverseCache(nil))
	_, err := pipeline.BuildScreeningReport(ctx, date)
	assert.ErrorIs(t, err, context.Canceled)
}

// Package backtest replays historical candles through the strategy
// controller and collects realized trades.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/metrics"
	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/persistence"
	"github.com/pairscan/pairscan/internal/strategy"
)

const timeframe = models.Timeframe1m

// Pair names the two legs of one backtested pair.
type Pair struct {
	AssetA models.Asset
	AssetB models.Asset
}

// Simulator drives the strategy controller over a historical candle
// range. Each closed candle becomes one tick at its close time with its
// close price; the controller never sees data past the current replay
// time.
type Simulator struct {
	cfg         config.BacktestConfig
	strategyCfg config.StrategyConfig
	candles     persistence.CandleStore
	logger      zerolog.Logger
}

// NewSimulator wires a simulator against the candle store.
func NewSimulator(cfg config.BacktestConfig, strategyCfg config.StrategyConfig, candles persistence.CandleStore) *Simulator {
	return &Simulator{
		cfg:         cfg,
		strategyCfg: strategyCfg,
		candles:     candles,
		logger:      zlog.With().Str("component", "backtest").Logger(),
	}
}

// Run replays [startTime, endTime] for every pair sequentially and
// returns the realized trade ledger. Pairs share one availability
// manager driven by simulated time, so losses on one pair block it for
// the rest of the run.
func (s *Simulator) Run(ctx context.Context, pairs []Pair, startTime, endTime int64) ([]models.BacktestTrade, error) {
	started := time.Now()

	// Simulated clock, advanced by the replay loop. The availability
	// manager sees it through the closure.
	currentTime := startTime
	availability := strategy.NewAvailabilityManager(strategy.AvailabilityConfig{
		LossLookback:         s.cfg.LossLookback,
		BlockCooldown:        s.cfg.BlockCooldown,
		MaxSingleLossPct:     s.cfg.MaxSingleLossPct,
		MaxCumulativeLossPct: s.cfg.MaxCumulativeLossPct,
		ConsecutiveLosses:    s.cfg.ConsecutiveLosses,
	}, func() int64 { return currentTime })

	for _, pair := range pairs {
		availability.InitializePair(models.PairSymbol(pair.AssetA, pair.AssetB))
	}

	var trades []models.BacktestTrade
	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		currentTime = startTime
		pairTrades, err := s.runPair(ctx, pair, startTime, endTime, availability, &currentTime, len(trades))
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", models.PairSymbol(pair.AssetA, pair.AssetB), err)
		}
		trades = append(trades, pairTrades...)

		s.logger.Info().
			Int("pair", i+1).
			Int("pairs", len(pairs)).
			Int("trades", len(trades)).
			Msg("pair replay complete")
	}

	metrics.BacktestDuration.Observe(time.Since(started).Seconds())
	return trades, nil
}

// openTrade tracks a position between its open and close signals.
type openTrade struct {
	direction  models.PositionDirection
	quantityA  float64
	quantityB  float64
	openPriceA float64
	openPriceB float64
	openTime   int64
	reason     string
}

func (s *Simulator) runPair(
	ctx context.Context,
	pair Pair,
	startTime, endTime int64,
	availability *strategy.AvailabilityManager,
	currentTime *int64,
	tradeIDOffset int,
) ([]models.BacktestTrade, error) {
	symbolA := pair.AssetA.Symbol
	symbolB := pair.AssetB.Symbol
	pairSymbol := models.PairSymbol(pair.AssetA, pair.AssetB)

	seedA, replayA, err := s.loadCandles(ctx, symbolA, startTime, endTime)
	if err != nil {
		return nil, err
	}
	seedB, replayB, err := s.loadCandles(ctx, symbolB, startTime, endTime)
	if err != nil {
		return nil, err
	}
	if len(replayA) == 0 || len(replayB) == 0 {
		s.logger.Warn().Str("pair", pairSymbol).Msg("no candles in backtest range, skipping")
		return nil, nil
	}

	ticks := mergeTicks(candlesToTicks(symbolA, replayA), candlesToTicks(symbolB, replayB))
	lastTickA := replayA[len(replayA)-1].CloseTime
	lastTickB := replayB[len(replayB)-1].CloseTime

	controller := strategy.NewController(symbolA, symbolB, timeframe, s.strategyCfg)
	if err := controller.Start(seedA, seedB); err != nil {
		return nil, err
	}
	defer controller.Stop()

	var (
		open   *openTrade
		trades []models.BacktestTrade
	)

	for _, tick := range ticks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		*currentTime = tick.Timestamp

		signal := controller.OnTick(tick)
		if signal == nil {
			continue
		}

		switch signal.Type {
		case strategy.SignalOpen:
			if !availability.IsPairAvailable(pairSymbol) {
				controller.PositionEnterRejected()
				continue
			}
			// An open at the end of either tick stream could never be
			// closed; reject it.
			if tick.Timestamp >= lastTickA || tick.Timestamp >= lastTickB {
				controller.PositionEnterRejected()
				continue
			}
			if signal.Beta == 0 || math.IsNaN(signal.Beta) {
				controller.PositionEnterRejected()
				continue
			}

			open = &openTrade{
				direction:  signal.Direction,
				quantityA:  s.cfg.BaseQuantity,
				quantityB:  s.cfg.BaseQuantity / math.Abs(signal.Beta),
				openPriceA: signal.SymbolA.Price,
				openPriceB: signal.SymbolB.Price,
				openTime:   tick.Timestamp,
				reason:     signal.Reason,
			}
			controller.PositionEnterAccepted(strategy.Position{
				Direction:  open.direction,
				QuantityA:  open.quantityA,
				QuantityB:  open.quantityB,
				OpenPriceA: open.openPriceA,
				OpenPriceB: open.openPriceB,
				OpenTime:   open.openTime,
			})

		case strategy.SignalClose, strategy.SignalStopLoss:
			if open == nil {
				controller.PositionExitRejected()
				continue
			}

			roi := strategy.CalculateROI(strategy.RoundTrip{
				Direction:   open.direction,
				SymbolA:     symbolA,
				SymbolB:     symbolB,
				QuantityA:   open.quantityA,
				QuantityB:   open.quantityB,
				OpenPriceA:  open.openPriceA,
				OpenPriceB:  open.openPriceB,
				ClosePriceA: signal.SymbolA.Price,
				ClosePriceB: signal.SymbolB.Price,
			}, s.strategyCfg.CommissionRate)

			trades = append(trades, models.BacktestTrade{
				ID:          tradeIDOffset + len(trades) + 1,
				Direction:   open.direction,
				SymbolA:     symbolA,
				SymbolB:     symbolB,
				QuantityA:   open.quantityA,
				QuantityB:   open.quantityB,
				OpenPriceA:  open.openPriceA,
				ClosePriceA: signal.SymbolA.Price,
				OpenPriceB:  open.openPriceB,
				ClosePriceB: signal.SymbolB.Price,
				OpenTime:    open.openTime,
				CloseTime:   tick.Timestamp,
				ROI:         roi,
				OpenReason:  open.reason,
				CloseReason: signal.Reason,
			})
			open = nil
			controller.PositionExitAccepted()

			availability.RecordTrade(pairSymbol, roi)
			if signal.Type == strategy.SignalStopLoss {
				availability.ForceBlockPair(pairSymbol, "stop-loss triggered")
			}
			metrics.BacktestTrades.WithLabelValues(string(signal.Type)).Inc()
		}
	}

	return trades, nil
}

// loadCandles splits the pair's candle history into a warmup seed ending
// at startTime and the replay range (startTime, endTime].
func (s *Simulator) loadCandles(ctx context.Context, symbol string, startTime, endTime int64) (seed, replay []models.Candle, err error) {
	seed, err = s.candles.FindCandles(ctx, symbol, timeframe, startTime, s.strategyCfg.CandleCount)
	if err != nil {
		return nil, nil, fmt.Errorf("%s warmup candles: %w", symbol, err)
	}
	if len(seed) == 0 {
		return nil, nil, fmt.Errorf("%s: no warmup candles before backtest start", symbol)
	}

	rangeBars := int((endTime-startTime)/timeframe.Milliseconds()) + 1
	all, err := s.candles.FindCandles(ctx, symbol, timeframe, endTime, rangeBars)
	if err != nil {
		return nil, nil, fmt.Errorf("%s replay candles: %w", symbol, err)
	}

	replay = make([]models.Candle, 0, len(all))
	for _, c := range all {
		if c.OpenTime > startTime {
			replay = append(replay, c)
		}
	}
	return seed, replay, nil
}

// candlesToTicks converts closed candles to ticks at their close times.
func candlesToTicks(symbol string, candles []models.Candle) []strategy.Tick {
	ticks := make([]strategy.Tick, len(candles))
	for i, c := range candles {
		ticks[i] = strategy.Tick{Symbol: symbol, Price: c.Close, Timestamp: c.CloseTime}
	}
	return ticks
}

// mergeTicks interleaves two time-ordered tick streams, preserving
// order and breaking timestamp ties in favor of the first stream.
func mergeTicks(a, b []strategy.Tick) []strategy.Tick {
	merged := make([]strategy.Tick, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Timestamp <= b[j].Timestamp {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}

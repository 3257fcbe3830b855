package screening

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/log"
	"github.com/pairscan/pairscan/internal/metrics"
	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/persistence"
)

const (
	shortTimeframe = models.Timeframe1m
	longTimeframe  = models.Timeframe5m
)

// Pipeline produces screening candidates from a point-in-time snapshot
// of the candle store. Runs are read-only with respect to market data.
type Pipeline struct {
	cfg       config.ScreeningConfig
	candles   persistence.CandleStore
	assets    persistence.AssetStore
	universe  *UniverseCache
	evaluator *PairEvaluator
	logger    zerolog.Logger
}

// NewPipeline wires a pipeline against the given stores.
func NewPipeline(cfg config.ScreeningConfig, candles persistence.CandleStore, assets persistence.AssetStore, universe *UniverseCache) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		candles:   candles,
		assets:    assets,
		universe:  universe,
		evaluator: NewPairEvaluator(cfg, shortTimeframe),
		logger:    zlog.With().Str("component", "screening").Logger(),
	}
}

// BuildScreeningReport evaluates every unordered pair of the filtered
// universe as of date (epoch milliseconds) and returns all candidates
// passing the full cascade, best score first. One pair's failure never
// aborts the run; cancellation of ctx does, between pairs.
func (p *Pipeline) BuildScreeningReport(ctx context.Context, date int64) ([]models.ScreeningCandidate, error) {
	started := time.Now()

	universe, err := p.filterUniverse(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("universe filter: %w", err)
	}
	p.logger.Info().Int("assets", len(universe)).Msg("universe filtered by daily volume")

	pairs, err := p.prefetchPairData(ctx, universe, date)
	if err != nil {
		return nil, fmt.Errorf("candle prefetch: %w", err)
	}

	totalPairs := len(pairs) * (len(pairs) - 1) / 2
	p.logger.Info().
		Int("assets", len(pairs)).
		Int("pairs", totalPairs).
		Msg("starting pairwise cascade")

	candidates, err := p.runCascade(ctx, pairs, totalPairs)
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	metrics.ScreeningRuns.Inc()
	metrics.ScreeningDuration.Observe(time.Since(started).Seconds())
	p.logger.Info().
		Int("candidates", len(candidates)).
		Dur("elapsed", time.Since(started)).
		Msg("screening run complete")

	return candidates, nil
}

// filterUniverse keeps assets whose latest daily quote volume, converted
// to the reference currency, meets the minimum. Results are cached per
// calendar day.
func (p *Pipeline) filterUniverse(ctx context.Context, date int64) ([]models.Asset, error) {
	day := startOfDay(date)
	if cached, ok := p.universe.Get(ctx, day); ok {
		return cached, nil
	}

	assets, err := p.assets.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Asset, 0, len(assets))
	for _, asset := range assets {
		candle, err := p.candles.LatestDailyCandle(ctx, asset.Symbol, day)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, err
		}

		volume := candle.QuoteVolume
		if asset.QuoteAsset != p.cfg.ReferenceCurrency {
			// Convert through the quote currency's own daily close
			// against the reference; no rate means no conversion.
			rateCandle, err := p.candles.LatestDailyCandle(ctx, asset.QuoteAsset+p.cfg.ReferenceCurrency, day)
			if err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					continue
				}
				return nil, err
			}
			volume *= rateCandle.Close
		}

		if volume >= p.cfg.MinDailyQuoteVolume {
			filtered = append(filtered, asset)
		}
	}

	p.universe.Put(ctx, day, filtered)
	return filtered, nil
}

// prefetchPairData fetches both candle windows for every asset in
// parallel and drops assets with incomplete windows before pairing.
func (p *Pipeline) prefetchPairData(ctx context.Context, assets []models.Asset, date int64) ([]PairData, error) {
	type fetched struct {
		index int
		data  PairData
		err   error
	}

	results := make(chan fetched, len(assets))
	sem := make(chan struct{}, p.workers())

	var wg sync.WaitGroup
	for i, asset := range assets {
		wg.Add(1)
		go func(i int, asset models.Asset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			short, err := p.candles.FindCandles(ctx, asset.Symbol, shortTimeframe, date, p.cfg.ShortTimeframeBars)
			if err != nil {
				results <- fetched{index: i, err: fmt.Errorf("%s 1m candles: %w", asset.Symbol, err)}
				return
			}
			long, err := p.candles.FindCandles(ctx, asset.Symbol, longTimeframe, date, p.cfg.LongTimeframeBars)
			if err != nil {
				results <- fetched{index: i, err: fmt.Errorf("%s 5m candles: %w", asset.Symbol, err)}
				return
			}
			results <- fetched{index: i, data: PairData{Asset: asset, Short: short, Long: long}}
		}(i, asset)
	}
	wg.Wait()
	close(results)

	ordered := make([]PairData, len(assets))
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		ordered[r.index] = r.data
	}

	complete := make([]PairData, 0, len(ordered))
	for _, d := range ordered {
		if len(d.Short) >= p.cfg.ShortTimeframeBars && len(d.Long) >= p.cfg.LongTimeframeBars {
			complete = append(complete, d)
		}
	}
	return complete, nil
}

// runCascade evaluates all unordered pairs on a worker pool. Workers
// share nothing but the read-only candle slices; results are collected
// under one mutex.
func (p *Pipeline) runCascade(ctx context.Context, pairs []PairData, totalPairs int) ([]models.ScreeningCandidate, error) {
	type job struct{ i, j int }

	jobs := make(chan job)
	progress := log.NewProgress(p.logger, "pairs processed", int64(totalPairs), 5)

	var (
		mu         sync.Mutex
		candidates []models.ScreeningCandidate
		wg         sync.WaitGroup
	)

	for w := 0; w < p.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				candidate := p.evaluatePair(pairs[jb.i], pairs[jb.j])
				progress.Increment()
				metrics.ScreeningPairsEvaluated.Inc()
				if candidate == nil {
					continue
				}
				metrics.ScreeningCandidates.Inc()
				mu.Lock()
				candidates = append(candidates, *candidate)
				mu.Unlock()
			}
		}()
	}

	var runErr error
feed:
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
				break feed
			case jobs <- job{i: i, j: j}:
			}
		}
	}
	close(jobs)
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	return candidates, nil
}

// evaluatePair isolates one pair: a panic or error drops the pair and
// the run continues.
func (p *Pipeline) evaluatePair(a, b PairData) (candidate *models.ScreeningCandidate) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ScreeningPairErrors.Inc()
			p.logger.Error().
				Str("asset_a", a.Asset.Symbol).
				Str("asset_b", b.Asset.Symbol).
				Interface("panic", r).
				Msg("pair evaluation panicked")
			candidate = nil
		}
	}()

	candidate, err := p.evaluator.Evaluate(a, b)
	if err != nil {
		metrics.ScreeningPairErrors.Inc()
		p.logger.Warn().
			Str("asset_a", a.Asset.Symbol).
			Str("asset_b", b.Asset.Symbol).
			Err(err).
			Msg("pair evaluation failed")
		return nil
	}
	return candidate
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// startOfDay truncates an epoch-millisecond timestamp to 00:00 UTC.
func startOfDay(ts int64) int64 {
	return time.UnixMilli(ts).UTC().Truncate(24 * time.Hour).UnixMilli()
}

// Package metrics registers the Prometheus collectors shared by the
// screening pipeline and the backtest simulator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScreeningRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairscan",
		Subsystem: "screening",
		Name:      "runs_total",
		Help:      "Completed screening runs.",
	})

	ScreeningPairsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairscan",
		Subsystem: "screening",
		Name:      "pairs_evaluated_total",
		Help:      "Pairs fed through the screening cascade.",
	})

	ScreeningCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairscan",
		Subsystem: "screening",
		Name:      "candidates_total",
		Help:      "Pairs surviving every cascade stage.",
	})

	ScreeningPairErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairscan",
		Subsystem: "screening",
		Name:      "pair_errors_total",
		Help:      "Pairs dropped because their evaluation failed.",
	})

	ScreeningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pairscan",
		Subsystem: "screening",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full screening run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	BacktestTrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairscan",
		Subsystem: "backtest",
		Name:      "trades_total",
		Help:      "Realized backtest trades by close reason.",
	}, []string{"reason"})

	BacktestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pairscan",
		Subsystem: "backtest",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a backtest run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
